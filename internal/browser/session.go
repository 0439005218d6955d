// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/config"
)

// opTimeout bounds a single page operation so a wedged renderer surfaces as a
// retryable failure, not a hang.
const opTimeout = 10 * time.Second

// Session represents an active browser tab. It implements pilot.Page and owns
// the tab's download capture side channel.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	downloadDir string
	downloadCh  chan string

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

// newSession creates the tab, connects CDP, and arms download capture.
func newSession(ctx context.Context, allocatorCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()

	tabCtx, cancel := chromedp.NewContext(allocatorCtx)

	s := &Session{
		id:         sessionID,
		ctx:        tabCtx,
		cancel:     cancel,
		logger:     logger.With(zap.String("session_id", sessionID)),
		cfg:        cfg,
		downloadCh: make(chan string, 4),
	}

	// Materialize the target so CDP commands have somewhere to go.
	initCtx, cancelInit := context.WithTimeout(tabCtx, 30*time.Second)
	defer cancelInit()
	if err := chromedp.Run(initCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize browser target: %w", err)
	}

	if err := s.initDownloadCapture(initCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to configure download capture: %w", err)
	}

	_ = ctx // session lifetime is governed by the tab context; callers bound operations per call
	s.logger.Debug("Browser session created.", zap.String("download_dir", s.downloadDir))
	return s, nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string { return s.id }

// Close terminates the tab and its download side channel.
func (s *Session) Close() {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
}

// runActions executes chromedp actions under the default per-operation
// timeout, respecting both the session lifetime (s.ctx) and the incoming
// request context (ctx).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	return s.run(ctx, opTimeout, actions...)
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	opCtx, cancelOp := context.WithTimeout(runCtx, timeout)
	defer cancelOp()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && opCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil && s.ctx.Err() == nil {
		return fmt.Errorf("page operation timed out after %v: %w", timeout, opCtx.Err())
	}
	return err
}

// combineContext derives a context from primary that is also cancelled when
// secondary is done. The primary carries the CDP target values.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
