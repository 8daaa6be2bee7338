// internal/browser/interface.go
package browser

import (
	"context"
	"time"
)

// Driver is the minimal browser surface the form pipeline depends on: navigate
// to a URL, locate elements by XPath, read and write element state, and wait
// with a bounded timeout. Session is the chromedp implementation; tests supply
// fakes.
type Driver interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// WaitPresent blocks until at least one node matches the selector or the
	// timeout elapses.
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	// Count returns the number of nodes currently matching the selector.
	Count(ctx context.Context, selector string) (int, error)
	// Text returns the rendered text of the first matching node.
	Text(ctx context.Context, selector string) (string, error)
	// Attribute reads a single attribute from the first matching node. The
	// second return reports whether the attribute exists.
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	// Value reads the current input value of the first matching node.
	Value(ctx context.Context, selector string) (string, error)
	// SetValue assigns the value directly and dispatches synthetic input and
	// change events. Needed for inputs where simulated keystrokes are unreliable.
	SetValue(ctx context.Context, selector, value string) error
	// Click scrolls the first matching node into view and clicks it. This is
	// also how inputs receive focus before typing.
	Click(ctx context.Context, selector string) error
	// Clear empties the current value of the first matching node.
	Clear(ctx context.Context, selector string) error
	// Type sends keystrokes to the first matching node.
	Type(ctx context.Context, selector, text string) error
	// Blur advances focus away from the first matching node, triggering the
	// page's own focus-out validation.
	Blur(ctx context.Context, selector string) error
	// ScrollIntoView brings the first matching node into the viewport.
	ScrollIntoView(ctx context.Context, selector string) error
	// PageSource returns the serialized HTML of the current document.
	PageSource(ctx context.Context) (string, error)
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// CurrentURL returns the location of the current document.
	CurrentURL(ctx context.Context) (string, error)
	// Screenshot captures the visible viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the underlying browser tab.
	Close(ctx context.Context) error
}
