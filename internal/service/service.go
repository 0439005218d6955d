// File: internal/service/service.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/artifact"
	"github.com/minsu-cho/declarepass/internal/browser"
	"github.com/minsu-cho/declarepass/internal/config"
	"github.com/minsu-cho/declarepass/internal/form"
	"github.com/minsu-cho/declarepass/internal/pilot"
)

// Submitter runs one declaration submission end to end. The HTTP layer and
// the CLI both depend on this interface; tests substitute a fake.
type Submitter interface {
	Submit(ctx context.Context, req *form.FormSubmissionRequest, opts SubmitOptions) (*artifact.ConfirmationArtifact, error)
}

// SubmitOptions are the per-request overrides a caller may apply on top of
// the configured defaults. Zero values mean "use the configuration".
type SubmitOptions struct {
	Headless *bool
	Timeout  time.Duration
	Retries  int
}

// Service owns the shared browser process and the artifact store, and spins
// up one isolated session per submission.
type Service struct {
	cfg     *config.Config
	manager *browser.Manager
	store   *artifact.Store
	logger  *zap.Logger
}

var _ Submitter = (*Service)(nil)

// New launches the browser and prepares the artifact store. The returned
// service must be closed with Shutdown.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("service")

	store, err := artifact.NewStore(cfg.Artifacts.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing artifact store: %w", err)
	}

	manager, err := browser.NewManager(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &Service{
		cfg:     cfg,
		manager: manager,
		store:   store,
		logger:  logger,
	}, nil
}

// Submit validates the request, opens a fresh tab, and drives the portal
// through to confirmation extraction. Each call gets its own session; the
// browser process is shared.
func (s *Service) Submit(ctx context.Context, req *form.FormSubmissionRequest, opts SubmitOptions) (*artifact.ConfirmationArtifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if opts.Headless != nil && *opts.Headless != s.cfg.Browser.Headless {
		// The browser process is shared across requests and launched once.
		s.logger.Warn("Per-request headless override ignored.",
			zap.Bool("requested", *opts.Headless),
			zap.Bool("running", s.cfg.Browser.Headless))
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	session, err := s.manager.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening browser session: %w", err)
	}
	defer session.Close()

	stepRetries := s.cfg.Retry.StepRetries
	if opts.Retries > 0 {
		stepRetries = opts.Retries
	}

	controller := pilot.NewController(session, s.store, pilot.Options{
		BaseURL:       s.cfg.Portal.BaseURL,
		StepTimeout:   s.cfg.Portal.StepTimeout,
		SubmitTimeout: s.cfg.Portal.SubmitTimeout,
		StepRetries:   stepRetries,
		Retry: pilot.RetryPolicy{
			MaxAttempts: s.cfg.Retry.MaxAttempts,
			Delay:       s.cfg.Retry.Delay,
		},
	}, s.logger.With(zap.String("session_id", session.ID())))

	start := time.Now()
	result, err := controller.Run(ctx, req)
	if err != nil {
		s.logger.Warn("Submission attempt failed.",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Submission confirmed.",
		zap.String("registration_number", result.RegistrationNumber),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// FallbackURL is surfaced to callers when automation fails, so a human can
// finish the declaration manually.
func (s *Service) FallbackURL() string { return s.cfg.Portal.FallbackURL }

// Shutdown closes the browser process, waiting for in-flight sessions.
func (s *Service) Shutdown(ctx context.Context) {
	s.manager.Shutdown(ctx)
}
