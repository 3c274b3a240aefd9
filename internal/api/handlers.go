// Package api provides HTTP handlers for HabitChat habit endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/HabitChat/internal/models"
	"github.com/BTreeMap/HabitChat/internal/streak"
)

// createHabitHandler handles POST /api/v1/habits
func (s *Server) createHabitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createHabitHandler: processing create request", "method", r.Method, "path", r.URL.Path)

	var req models.HabitCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createHabitHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createHabitHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	habit, err := s.st.CreateHabit(userID(r), req.Name, req.Description)
	if err != nil {
		slog.Error("Server.createHabitHandler: failed to create habit", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create habit"))
		return
	}
	slog.Info("Server.createHabitHandler: habit created", "habitID", habit.ID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Habit created", habit))
}

// listHabitsHandler handles GET /api/v1/habits
func (s *Server) listHabitsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listHabitsHandler invoked", "method", r.Method, "path", r.URL.Path)

	habits, err := s.st.ListHabits(userID(r))
	if err != nil {
		slog.Error("Server.listHabitsHandler: failed to list habits", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list habits"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(habits))
}

// getHabitHandler handles GET /api/v1/habits/{habitID}
func (s *Server) getHabitHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.getHabitHandler invoked", "method", r.Method, "path", r.URL.Path)

	habit, err := s.st.GetHabit(userID(r), r.PathValue("habitID"))
	if errors.Is(err, models.ErrHabitNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Habit not found"))
		return
	}
	if err != nil {
		slog.Error("Server.getHabitHandler: failed to load habit", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load habit"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(habit))
}

// updateHabitHandler handles PATCH /api/v1/habits/{habitID}
func (s *Server) updateHabitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.updateHabitHandler: processing update request", "method", r.Method, "path", r.URL.Path)

	var req models.HabitUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.updateHabitHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.updateHabitHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	habit, err := s.st.UpdateHabit(userID(r), r.PathValue("habitID"), req.Name, req.Description)
	if errors.Is(err, models.ErrHabitNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Habit not found"))
		return
	}
	if err != nil {
		slog.Error("Server.updateHabitHandler: failed to update habit", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update habit"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Habit updated", habit))
}

// deleteHabitHandler handles DELETE /api/v1/habits/{habitID}
func (s *Server) deleteHabitHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.deleteHabitHandler invoked", "method", r.Method, "path", r.URL.Path)

	err := s.st.DeleteHabit(userID(r), r.PathValue("habitID"))
	if errors.Is(err, models.ErrHabitNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Habit not found"))
		return
	}
	if err != nil {
		slog.Error("Server.deleteHabitHandler: failed to delete habit", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete habit"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Habit deleted", nil))
}

// deleteAllHabitsHandler handles DELETE /api/v1/habits
func (s *Server) deleteAllHabitsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.deleteAllHabitsHandler invoked", "method", r.Method, "path", r.URL.Path)

	count, err := s.st.DeleteAllHabits(userID(r))
	if err != nil {
		slog.Error("Server.deleteAllHabitsHandler: failed to delete habits", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete habits"))
		return
	}
	slog.Info("Server.deleteAllHabitsHandler: habits deleted", "count", count)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Habits deleted", map[string]int{"deleted": count}))
}

// logCompletionHandler handles POST /api/v1/habits/{habitID}/completions
func (s *Server) logCompletionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.logCompletionHandler: processing completion", "method", r.Method, "path", r.URL.Path)

	var req models.CompletionLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.logCompletionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			slog.Warn("Server.logCompletionHandler: invalid date", "date", req.Date, "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid date, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	completion, err := s.st.LogCompletion(userID(r), r.PathValue("habitID"), date, req.Status, req.Note)
	if errors.Is(err, models.ErrHabitNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Habit not found"))
		return
	}
	if errors.Is(err, models.ErrInvalidCompletionDay) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err != nil {
		slog.Error("Server.logCompletionHandler: failed to log completion", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to log completion"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Completion logged", completion))
}

// listCompletionsHandler handles GET /api/v1/habits/{habitID}/completions
func (s *Server) listCompletionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listCompletionsHandler invoked", "method", r.Method, "path", r.URL.Path)

	completions, err := s.st.ListCompletions(userID(r), r.PathValue("habitID"))
	if errors.Is(err, models.ErrHabitNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Habit not found"))
		return
	}
	if err != nil {
		slog.Error("Server.listCompletionsHandler: failed to list completions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list completions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(completions))
}

// deleteCompletionsHandler handles DELETE /api/v1/habits/{habitID}/completions
func (s *Server) deleteCompletionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.deleteCompletionsHandler invoked", "method", r.Method, "path", r.URL.Path)

	err := s.st.DeleteCompletions(userID(r), r.PathValue("habitID"))
	if errors.Is(err, models.ErrHabitNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Habit not found"))
		return
	}
	if err != nil {
		slog.Error("Server.deleteCompletionsHandler: failed to clear completions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to clear completions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Completions cleared", nil))
}

// streakHandler handles GET /api/v1/habits/{habitID}/streak
func (s *Server) streakHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.streakHandler invoked", "method", r.Method, "path", r.URL.Path)

	uid := userID(r)
	habitID := r.PathValue("habitID")

	habit, err := s.st.GetHabit(uid, habitID)
	if errors.Is(err, models.ErrHabitNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Habit not found"))
		return
	}
	if err != nil {
		slog.Error("Server.streakHandler: failed to load habit", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load habit"))
		return
	}
	completions, err := s.st.ListCompletions(uid, habitID)
	if err != nil {
		slog.Error("Server.streakHandler: failed to list completions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute streak"))
		return
	}

	report := models.StreakReport{
		HabitID: habit.ID,
		Name:    habit.Name,
		Current: habit.Streak,
		Longest: streak.Longest(completions),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}
