// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/divrinavyas/google-form-submitter/internal/config"
)

// Manager owns the Chrome process lifecycle and hands out sessions (tabs).
// One Manager is created per process; each submission run gets its own Session.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu sync.Mutex
	wg sync.WaitGroup // tracks open sessions so Shutdown can wait for them

	initOnce sync.Once
	initErr  error
}

// NewManager creates a new browser manager. The Chrome process itself is not
// launched until the first session is requested.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
}

// initialize builds the exec allocator that launches and owns the Chrome process.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser process.",
			zap.Bool("headless", m.cfg.Browser.Headless),
			zap.String("exec_path", m.cfg.Browser.ExecPath))

		// A configured binary override must exist; failing here is clearer
		// than a launch error buried in the first session.
		if m.cfg.Browser.ExecPath != "" {
			if _, err := os.Stat(m.cfg.Browser.ExecPath); err != nil {
				m.initErr = fmt.Errorf("browser executable not found at %q: %w", m.cfg.Browser.ExecPath, err)
				return
			}
		}

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			// Hardened flags for containerized environments.
			chromedp.NoSandbox,
			chromedp.DisableGPU,
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-software-rasterizer", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-infobars", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(m.cfg.Browser.WindowWidth, m.cfg.Browser.WindowHeight),
			chromedp.UserAgent(m.cfg.Browser.UserAgent),
		)

		if m.cfg.Browser.Headless {
			opts = append(opts, chromedp.Flag("headless", "new"))
		} else {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		if m.cfg.Browser.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(m.cfg.Browser.ExecPath))
		}
		for _, arg := range m.cfg.Browser.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	})
	return m.initErr
}

// NewSession opens a fresh tab bound to the managed browser process.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	// Establish the CDP connection eagerly so session creation fails fast when
	// the browser cannot start.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to connect to browser target: %w", err)
	}

	m.wg.Add(1)
	s := newSession(tabCtx, tabCancel, m.cfg, m.logger, m.wg.Done)
	m.logger.Info("New browser session created.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown waits for open sessions to close and tears down the browser process.
func (m *Manager) Shutdown(ctx context.Context) {
	m.logger.Info("Shutting down browser manager.")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close; forcing browser shutdown.")
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}
}
