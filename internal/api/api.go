// Package api provides HTTP handlers and the main API server logic for HabitChat.
//
// It exposes the conversational endpoint plus RESTful habit, completion, and
// conversation-history endpoints. The API integrates with the chat engine,
// the intent modules, and the store backends.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/BTreeMap/HabitChat/internal/chat"
	"github.com/BTreeMap/HabitChat/internal/genai"
	"github.com/BTreeMap/HabitChat/internal/intent"
	"github.com/BTreeMap/HabitChat/internal/store"
)

// DefaultAddr is the address the API server listens on when none is given.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr      string
	JWTSecret string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithJWTSecret sets the secret used to verify bearer tokens.
func WithJWTSecret(secret string) Option {
	return func(o *Opts) {
		o.JWTSecret = secret
	}
}

// Server holds the API's dependencies.
type Server struct {
	st        store.Store
	engine    *chat.Engine
	addr      string
	jwtSecret []byte
}

// NewServer creates an API server around the given store and chat engine.
func NewServer(st store.Store, engine *chat.Engine, options ...Option) *Server {
	opts := Opts{Addr: DefaultAddr}
	for _, opt := range options {
		opt(&opts)
	}
	return &Server{
		st:        st,
		engine:    engine,
		addr:      opts.Addr,
		jwtSecret: []byte(opts.JWTSecret),
	}
}

// Run wires up the configured modules and starts the API server. It blocks
// until the server stops.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	var engineOpts []chat.Option
	gaClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("Run: GenAI client unavailable, running on the keyword parser alone", "error", err)
	} else {
		engineOpts = append(engineOpts, chat.WithClassifier(intent.NewClassifier(gaClient)))
	}
	engine := chat.NewEngine(st, engineOpts...)

	srv := NewServer(st, engine, apiOpts...)
	return srv.Start()
}

// buildStore selects a backend from the configured DSN: Postgres for
// connection URLs, SQLite for file paths, in-memory when no DSN is set.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Info("buildStore: no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	case store.DetectDSNType(cfg.DSN) == "postgres":
		slog.Info("buildStore: using PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	default:
		slog.Info("buildStore: using SQLite store", "path", cfg.DSN)
		return store.NewSQLiteStore(storeOpts...)
	}
}

// Start registers the routes and begins serving.
func (s *Server) Start() error {
	if len(s.jwtSecret) == 0 {
		// Without a verification secret every request would be anonymous.
		slog.Warn("Server.Start: no JWT secret configured, rejecting all authenticated routes")
	}
	mux := s.routes()
	slog.Info("HabitChat API running", "addr", s.addr)
	if err := http.ListenAndServe(s.addr, mux); err != nil {
		slog.Error("Server.Start: server stopped", "error", err)
		return err
	}
	return nil
}

// routes builds the HTTP mux. Everything under /api/v1 requires a bearer
// token; /health does not.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)

	mux.Handle("POST /api/v1/chat", s.authenticate(s.chatHandler))

	mux.Handle("GET /api/v1/habits", s.authenticate(s.listHabitsHandler))
	mux.Handle("POST /api/v1/habits", s.authenticate(s.createHabitHandler))
	mux.Handle("DELETE /api/v1/habits", s.authenticate(s.deleteAllHabitsHandler))
	mux.Handle("GET /api/v1/habits/{habitID}", s.authenticate(s.getHabitHandler))
	mux.Handle("PATCH /api/v1/habits/{habitID}", s.authenticate(s.updateHabitHandler))
	mux.Handle("DELETE /api/v1/habits/{habitID}", s.authenticate(s.deleteHabitHandler))

	mux.Handle("POST /api/v1/habits/{habitID}/completions", s.authenticate(s.logCompletionHandler))
	mux.Handle("GET /api/v1/habits/{habitID}/completions", s.authenticate(s.listCompletionsHandler))
	mux.Handle("DELETE /api/v1/habits/{habitID}/completions", s.authenticate(s.deleteCompletionsHandler))
	mux.Handle("GET /api/v1/habits/{habitID}/streak", s.authenticate(s.streakHandler))

	mux.Handle("GET /api/v1/conversations", s.authenticate(s.listConversationsHandler))
	mux.Handle("GET /api/v1/conversations/{conversationID}/messages", s.authenticate(s.listConversationMessagesHandler))
	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok", "hostname": hostname()})
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
