// File: internal/browser/download.go
package browser

import (
	"context"
	"os"
	"path/filepath"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// initDownloadCapture redirects the tab's downloads into a per-session
// directory and wires completion events into s.downloadCh. Files are named by
// their download GUID so concurrent downloads cannot collide.
func (s *Session) initDownloadCapture(ctx context.Context) error {
	base := s.cfg.Browser.DownloadDir
	dir, err := os.MkdirTemp(base, "declarepass-dl-*")
	if err != nil {
		return err
	}
	s.downloadDir = dir

	if err := chromedp.Run(ctx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	); err != nil {
		return err
	}

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		progress, ok := ev.(*cdpbrowser.EventDownloadProgress)
		if !ok || progress.State != cdpbrowser.DownloadProgressStateCompleted {
			return
		}
		path := filepath.Join(dir, progress.GUID)
		select {
		case s.downloadCh <- path:
			s.logger.Debug("Download completed.", zap.String("path", path))
		default:
			s.logger.Warn("Download event channel full, dropping completion event.", zap.String("path", path))
		}
	})
	return nil
}

// DownloadDir returns the directory downloads for this session land in.
func (s *Session) DownloadDir() string { return s.downloadDir }

// DownloadEvents exposes completed download paths as they arrive.
func (s *Session) DownloadEvents() <-chan string { return s.downloadCh }
