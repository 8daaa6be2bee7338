// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/divrinavyas/google-form-submitter/internal/config"
)

// Session represents one browser tab and implements Driver on top of chromedp.
// All element selectors are XPath expressions; every operation is bounded by
// either the caller's context or the configured element timeout.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

var _ Driver = (*Session)(nil)

func newSession(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	logger *zap.Logger,
	onClose func(),
) *Session {
	sessionID := uuid.New().String()
	return &Session{
		id:      sessionID,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.Named("session").With(zap.String("session_id", sessionID)),
		cfg:     cfg,
		onClose: onClose,
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Close terminates the browser tab. Safe to call multiple times.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.cancel()
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// runActions executes chromedp actions, ensuring they respect both the session
// lifetime (s.ctx) and the incoming request context (ctx).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// runBounded applies the configured element timeout on top of runActions.
func (s *Session) runBounded(ctx context.Context, actions ...chromedp.Action) error {
	timeout := s.cfg.Network.ElementTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.runActions(opCtx, actions...)
}

// Navigate loads the URL and waits for the page to stabilize.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	navTimeout := s.cfg.Network.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	if err := s.runActions(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	// Give the page a settle period before interacting; client-rendered forms
	// attach their inputs after the document is ready.
	if wait := s.cfg.Network.PostLoadWait; wait > 0 {
		if err := s.runActions(ctx, chromedp.Sleep(wait)); err != nil {
			return err
		}
	}
	return nil
}

// WaitPresent blocks until the selector matches at least one node or the
// timeout elapses.
func (s *Session) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.runActions(waitCtx, chromedp.WaitReady(selector, chromedp.BySearch)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// Count returns the number of nodes currently matching the selector.
func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	var ids []cdp.NodeID
	err := s.runBounded(ctx, chromedp.NodeIDs(selector, &ids, chromedp.BySearch, chromedp.AtLeast(0)))
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", selector, err)
	}
	return len(ids), nil
}

// Text returns the rendered text of the first matching node.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := s.runBounded(ctx, chromedp.Text(selector, &text, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("text of %q: %w", selector, err)
	}
	return text, nil
}

// Attribute reads one attribute from the first matching node.
func (s *Session) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var value string
	var ok bool
	if err := s.runBounded(ctx, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.BySearch)); err != nil {
		return "", false, fmt.Errorf("attribute %q of %q: %w", name, selector, err)
	}
	return value, ok, nil
}

// Value reads the current input value of the first matching node.
func (s *Session) Value(ctx context.Context, selector string) (string, error) {
	var value string
	if err := s.runBounded(ctx, chromedp.Value(selector, &value, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("value of %q: %w", selector, err)
	}
	return value, nil
}

// SetValue assigns the value via script and dispatches synthetic input and
// change events, for inputs where trusted keystrokes are unreliable (e.g.
// native date pickers).
func (s *Session) SetValue(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(function() {
		const r = document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
		const el = r.singleNodeValue;
		if (!el) { return false; }
		el.value = %q;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, selector, value)

	var ok bool
	if err := s.runBounded(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("set value of %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("set value: no element matching %q", selector)
	}
	return nil
}

// Click scrolls the first matching node into view and clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	err := s.runBounded(ctx,
		chromedp.ScrollIntoView(selector, chromedp.BySearch),
		chromedp.Click(selector, chromedp.BySearch),
	)
	if err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// Clear empties the current value of the first matching node.
func (s *Session) Clear(ctx context.Context, selector string) error {
	if err := s.runBounded(ctx, chromedp.Clear(selector, chromedp.BySearch)); err != nil {
		return fmt.Errorf("clear %q: %w", selector, err)
	}
	return nil
}

// Type sends keystrokes to the first matching node.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	if err := s.runBounded(ctx, chromedp.SendKeys(selector, text, chromedp.BySearch)); err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	return nil
}

// Blur advances focus away from the element with a Tab keystroke, triggering
// the page's own focus-out validation.
func (s *Session) Blur(ctx context.Context, selector string) error {
	if err := s.runBounded(ctx, chromedp.SendKeys(selector, kb.Tab, chromedp.BySearch)); err != nil {
		return fmt.Errorf("blur %q: %w", selector, err)
	}
	return nil
}

// ScrollIntoView brings the first matching node into the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, selector string) error {
	if err := s.runBounded(ctx, chromedp.ScrollIntoView(selector, chromedp.BySearch)); err != nil {
		return fmt.Errorf("scroll to %q: %w", selector, err)
	}
	return nil
}

// PageSource returns the serialized HTML of the current document.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.runBounded(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page source: %w", err)
	}
	return html, nil
}

// Title returns the current document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.runBounded(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("title: %w", err)
	}
	return title, nil
}

// CurrentURL returns the location of the current document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.runBounded(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("location: %w", err)
	}
	return location, nil
}

// Screenshot captures the visible viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.runBounded(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// CombineContext creates a new context that is canceled when either parentCtx
// or secondaryCtx is canceled. This keeps operations bounded by both the
// session lifecycle and the specific request deadline.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
