// Package web serves the settings TUI in a browser. Each browser session
// gets its own sandbox database, so visitors can try settings and plans
// without touching a real store.
package web

import (
	_ "embed"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

//go:embed static/index.html
var indexHTML []byte

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

const (
	cookieName = "confutil_session"
	sessionAge = 30 * 24 * time.Hour
)

// CommandFunc builds the process attached to a browser terminal for the
// session database at dbPath.
type CommandFunc func(dbPath string) *exec.Cmd

// TUICommand runs "exe tui --db dbPath", letting the child start its own
// embedded API server over the session database.
func TUICommand(exe string) CommandFunc {
	return func(dbPath string) *exec.Cmd {
		cmd := exec.Command(exe, "tui", "--db", dbPath)
		cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")
		return cmd
	}
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithCommand replaces the process started for each terminal.
func WithCommand(fn CommandFunc) Option {
	return func(s *Server) { s.command = fn }
}

// Server serves the web terminal.
type Server struct {
	addr       string
	sessionDir string
	command    CommandFunc
	log        zerolog.Logger
	router     chi.Router
}

// NewServer creates a web terminal server. sessionDir holds one sqlite
// database per browser session.
func NewServer(addr, sessionDir string, opts ...Option) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:       addr,
		sessionDir: sessionDir,
		log:        zerolog.Nop(),
		router:     r,
	}
	if exe, err := os.Executable(); err == nil {
		s.command = TUICommand(exe)
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Get("/", s.handleIndex)
	r.Get("/ws", s.handleWebSocket)
	r.Post("/reset", s.handleReset)
	r.Get("/join/{id}", s.handleJoin)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the web terminal server.
func (s *Server) ListenAndServe() error {
	if err := os.MkdirAll(s.sessionDir, 0o755); err != nil {
		return fmt.Errorf("session dir: %w", err)
	}
	s.log.Info().Str("addr", s.addr).Str("sessions", s.sessionDir).Msg("web terminal listening")
	return http.ListenAndServe(s.addr, s.router)
}

func (s *Server) Serve(ln net.Listener) error {
	if err := os.MkdirAll(s.sessionDir, 0o755); err != nil {
		return fmt.Errorf("session dir: %w", err)
	}
	return http.Serve(ln, s.router)
}

func (s *Server) dbPath(id string) string {
	return filepath.Join(s.sessionDir, id+".db")
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	})
}

// session reads the session cookie, issuing a new one when it is missing or
// malformed.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(cookieName); err == nil && uuidRe.MatchString(c.Value) {
		return c.Value
	}
	id := uuid.New().String()
	setSessionCookie(w, id)
	return id
}

// existingSession reads the session cookie without writing headers.
func existingSession(r *http.Request) (string, error) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return "", fmt.Errorf("no session cookie")
	}
	if !uuidRe.MatchString(c.Value) {
		return "", fmt.Errorf("invalid session cookie")
	}
	return c.Value, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleReset drops the session database and cookie, so the next page load
// starts from a freshly seeded store.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, err := existingSession(r)
	if err != nil {
		http.Error(w, "no valid session", http.StatusBadRequest)
		return
	}
	base := s.dbPath(id)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		os.Remove(base + suffix)
	}
	s.log.Info().Str("session", id).Msg("session reset")

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("reset"))
}

// handleJoin attaches the browser to an existing session, for sharing a
// sandbox between tabs or people.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !uuidRe.MatchString(id) {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(s.dbPath(id)); os.IsNotExist(err) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	setSessionCookie(w, id)
	http.Redirect(w, r, "/", http.StatusFound)
}
