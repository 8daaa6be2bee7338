// internal/browser/drivertest/fake.go
//
// Package drivertest provides a scriptable in-memory Driver for tests.
// Selector behavior is table-driven; every interaction is recorded so tests
// can assert on call order without a real browser.
package drivertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/divrinavyas/google-form-submitter/internal/browser"
)

// Fake implements browser.Driver against lookup tables.
type Fake struct {
	mu sync.Mutex

	// Counts maps selector to match count. Absent selectors match nothing,
	// which also makes WaitPresent on them time out immediately.
	Counts map[string]int
	// Texts maps selector to rendered text.
	Texts map[string]string
	// Attributes maps selector to attribute name to value.
	Attributes map[string]map[string]string
	// Values holds the current input value per selector.
	Values map[string]string
	// FlakyTypes counts how many leading Type calls per selector should
	// silently drop their text, simulating an input that swallows keys.
	FlakyTypes map[string]int
	// Errs forces an error for a specific "op selector" key, e.g.
	// "click //div[@role='button']".
	Errs map[string]error

	Source    string
	PageTitle string
	URL       string

	// NavigateFunc, when set, intercepts Navigate.
	NavigateFunc func(url string) error

	Calls  []string
	Closed bool
}

// New builds an empty Fake; populate the tables directly.
func New() *Fake {
	return &Fake{
		Counts:     map[string]int{},
		Texts:      map[string]string{},
		Attributes: map[string]map[string]string{},
		Values:     map[string]string{},
		FlakyTypes: map[string]int{},
		Errs:       map[string]error{},
	}
}

// Present marks a selector as matching exactly one node.
func (f *Fake) Present(selectors ...string) *Fake {
	for _, sel := range selectors {
		f.Counts[sel] = 1
	}
	return f
}

// CallsMatching returns the recorded calls whose "op selector" string starts
// with prefix.
func (f *Fake) CallsMatching(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, call := range f.Calls {
		if strings.HasPrefix(call, prefix) {
			out = append(out, call)
		}
	}
	return out
}

func (f *Fake) record(op, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op
	if selector != "" {
		key = op + " " + selector
	}
	f.Calls = append(f.Calls, key)
	return f.Errs[key]
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := f.record("navigate", url); err != nil {
		return err
	}
	f.mu.Lock()
	f.URL = url
	f.mu.Unlock()
	if f.NavigateFunc != nil {
		return f.NavigateFunc(url)
	}
	return nil
}

func (f *Fake) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	if err := f.record("wait", selector); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Counts[selector] > 0 {
		return nil
	}
	return fmt.Errorf("timed out waiting for %s", selector)
}

func (f *Fake) Count(ctx context.Context, selector string) (int, error) {
	if err := f.record("count", selector); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Counts[selector], nil
}

func (f *Fake) Text(ctx context.Context, selector string) (string, error) {
	if err := f.record("text", selector); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.Texts[selector]
	if !ok {
		return "", fmt.Errorf("no node for %s", selector)
	}
	return text, nil
}

func (f *Fake) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	if err := f.record("attr", selector); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	attrs, ok := f.Attributes[selector]
	if !ok {
		return "", false, nil
	}
	v, ok := attrs[name]
	return v, ok, nil
}

func (f *Fake) Value(ctx context.Context, selector string) (string, error) {
	if err := f.record("value", selector); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Values[selector], nil
}

func (f *Fake) SetValue(ctx context.Context, selector, value string) error {
	if err := f.record("setvalue", selector); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Values[selector] = value
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	return f.record("click", selector)
}

func (f *Fake) Clear(ctx context.Context, selector string) error {
	if err := f.record("clear", selector); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Values[selector] = ""
	return nil
}

func (f *Fake) Type(ctx context.Context, selector, text string) error {
	if err := f.record("type", selector); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FlakyTypes[selector] > 0 {
		f.FlakyTypes[selector]--
		return nil
	}
	f.Values[selector] += text
	return nil
}

func (f *Fake) Blur(ctx context.Context, selector string) error {
	return f.record("blur", selector)
}

func (f *Fake) ScrollIntoView(ctx context.Context, selector string) error {
	return f.record("scroll", selector)
}

func (f *Fake) PageSource(ctx context.Context) (string, error) {
	if err := f.record("source", ""); err != nil {
		return "", err
	}
	return f.Source, nil
}

func (f *Fake) Title(ctx context.Context) (string, error) {
	return f.PageTitle, f.record("title", "")
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	return f.URL, f.record("url", "")
}

func (f *Fake) Screenshot(ctx context.Context) ([]byte, error) {
	if err := f.record("screenshot", ""); err != nil {
		return nil, err
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (f *Fake) Close(ctx context.Context) error {
	err := f.record("close", "")
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return err
}

var _ browser.Driver = (*Fake)(nil)
