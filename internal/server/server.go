package server

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/simonvc/confutil/internal/confutil"
	"github.com/simonvc/confutil/internal/orm"
)

type Server struct {
	reg    orm.Registry
	env    orm.Env
	router chi.Router
	addr   string
	log    zerolog.Logger
	now    func() time.Time

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithEnv sets the identity requests act as. The default is the superuser.
func WithEnv(env orm.Env) Option {
	return func(s *Server) { s.env = env }
}

// WithClock replaces time.Now for account setup.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.readTimeout, s.writeTimeout, s.idleTimeout = read, write, idle
	}
}

func New(reg orm.Registry, addr string, opts ...Option) *Server {
	r := chi.NewRouter()
	s := &Server{
		reg:    reg,
		env:    orm.NewEnv(orm.SuperuserID),
		router: r,
		addr:   addr,
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		// Models
		r.Get("/models", s.listModels)
		r.Get("/models/{model}/fields", s.modelFields)
		r.Post("/models/{model}/search", s.searchRecords)
		r.Post("/models/{model}/lookup", s.lookupRecord)
		r.Get("/xmlid/{xmlid}", s.resolveXMLID)

		// Settings wizards
		r.Get("/settings", s.listSettingsModels)
		r.Get("/settings/{model}", s.getSettings)
		r.Put("/settings/{model}", s.applySettings)

		// Companies
		r.Get("/companies/unconfigured", s.unconfiguredCompanies)
		r.Post("/companies/{id}/setup-accounts", s.setupAccounts)

		// Plans
		r.Post("/plans", s.applyPlan)
	})

	return s
}

func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.addr).Msg("confutil server listening")
	return s.httpServer().ListenAndServe()
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("confutil server listening")
	return s.httpServer().Serve(ln)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}
}

// configurator returns helpers bound to the request's logger.
func (s *Server) configurator(r *http.Request) *confutil.Configurator {
	return confutil.NewConfigurator(s.reg, s.env, confutil.WithLogger(s.requestLog(r)))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			ev := s.log.Info()
			if ww.Status() >= http.StatusInternalServerError {
				ev = s.log.Error()
			}
			ev.Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) requestLog(r *http.Request) zerolog.Logger {
	return s.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
}
