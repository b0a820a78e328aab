package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/adeeb897/soup-kitchen-scheduler/email"
	"github.com/adeeb897/soup-kitchen-scheduler/store"
)

// errInvalidToken marks an access token the provider rejects. Handlers map it
// to 401.
var errInvalidToken = errors.New("invalid access token")

// Server wires the auth proxy and the scheduling API behind one Gin router.
// The database and pending-auth store are optional: endpoints that need a
// missing backing store answer 501 instead of panicking, so the binary can
// still serve the auth proxy on a bare config.
type Server struct {
	cfg     *AppConfig
	db      *gorm.DB
	google  *GoogleProvider
	pending store.PendingAuthStore
	shifts  *store.ShiftStore
	signups *store.SignupStore
	sender  email.Sender
	logger  zerolog.Logger

	httpServer *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithDB attaches the shift/signup database.
func WithDB(db *gorm.DB) Option {
	return func(s *Server) {
		s.db = db
		s.shifts = store.NewShiftStore(db)
		s.signups = store.NewSignupStore(db)
	}
}

// WithPendingAuthStore sets the backing store for in-flight logins.
func WithPendingAuthStore(p store.PendingAuthStore) Option {
	return func(s *Server) { s.pending = p }
}

// WithSender sets the outbound email sender.
func WithSender(sender email.Sender) Option {
	return func(s *Server) { s.sender = sender }
}

// WithGoogleProvider overrides the provider, mainly for tests that point it
// at a fake.
func WithGoogleProvider(p *GoogleProvider) Option {
	return func(s *Server) { s.google = p }
}

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server from config. Unset collaborators fall back to
// safe defaults: a Nop logger, a console email sender, and no database.
func NewServer(cfg *AppConfig, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		google: NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sender == nil {
		s.sender = email.NewConsoleSender()
	}
	return s
}

// Router builds the Gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	return NewGinEngine(s)
}

// Run serves HTTP until ctx is cancelled, then drains connections for up to
// ten seconds.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info().Str("addr", s.cfg.Server.Addr).Msg("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
