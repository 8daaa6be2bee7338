// internal/form/filler.go
package form

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/divrinavyas/google-form-submitter/internal/browser"
	"github.com/divrinavyas/google-form-submitter/internal/config"
)

// Filler performs the input sequence appropriate to a field's kind, with
// bounded retries and post-fill verification. Fill never returns an error:
// exhausting all attempts is reported as a boolean failure that the caller
// records against the row.
type Filler struct {
	cfg    config.SubmitterConfig
	logger *zap.Logger
}

// NewFiller builds a Filler.
func NewFiller(cfg config.SubmitterConfig, logger *zap.Logger) *Filler {
	return &Filler{
		cfg:    cfg,
		logger: logger.Named("filler"),
	}
}

// Fill writes value into the field described by desc. Date fields take a
// dedicated path; everything else is focus, clear, type, verify.
func (f *Filler) Fill(ctx context.Context, drv browser.Driver, desc FieldDescriptor, value any) bool {
	if desc.Kind == KindDate {
		return f.fillDate(ctx, drv, desc, value)
	}

	text := stringify(value)
	log := f.logger.With(zap.String("label", desc.Label), zap.Int("ordinal", desc.Ordinal))

	for attempt := 1; attempt <= f.cfg.MaxFillRetries; attempt++ {
		if err := f.fillOnce(ctx, drv, desc, text); err != nil {
			log.Debug("Fill attempt failed.", zap.Int("attempt", attempt), zap.Error(err))
			if !f.pause(ctx) {
				return false
			}
			continue
		}

		// Declare success only when the input actually holds a value.
		entered, err := drv.Value(ctx, desc.InputLocator)
		if err == nil && entered != "" {
			return true
		}
		log.Debug("No value present after fill attempt.",
			zap.Int("attempt", attempt), zap.String("expected", text))
		if !f.pause(ctx) {
			return false
		}
	}
	return false
}

// fillOnce runs one complete fill sequence for a non-date field.
func (f *Filler) fillOnce(ctx context.Context, drv browser.Driver, desc FieldDescriptor, text string) error {
	sel := desc.InputLocator

	if err := drv.ScrollIntoView(ctx, sel); err != nil {
		return err
	}
	if err := drv.Click(ctx, sel); err != nil {
		return err
	}
	if err := drv.Clear(ctx, sel); err != nil {
		return err
	}
	if err := drv.Type(ctx, sel, text); err != nil {
		return err
	}
	// Email inputs validate on focus-out; trigger the host UI's own check.
	if desc.Kind == KindEmail {
		if err := drv.Blur(ctx, sel); err != nil {
			return err
		}
	}
	return nil
}

// fillDate parses the value and tries the date strategies in order: separate
// day/month/year inputs, a single native date input, then a free-text
// fallback. The container's children are re-queried fresh on every attempt
// because element references go stale across page reloads.
func (f *Filler) fillDate(ctx context.Context, drv browser.Driver, desc FieldDescriptor, value any) bool {
	log := f.logger.With(zap.String("label", desc.Label), zap.Int("ordinal", desc.Ordinal))

	date, ok := ParseDate(value)
	if !ok {
		log.Warn("Could not parse date value.", zap.Any("value", value))
		return false
	}
	log.Debug("Parsed date.",
		zap.Int("day", date.Day), zap.Int("month", date.Month), zap.Int("year", date.Year))

	for attempt := 1; attempt <= f.cfg.MaxFillRetries; attempt++ {
		done, err := f.fillDateOnce(ctx, drv, desc.ContainerLocator, date)
		if done {
			return true
		}
		if err != nil {
			log.Debug("Date fill attempt failed.", zap.Int("attempt", attempt), zap.Error(err))
		}
		if !f.pause(ctx) {
			return false
		}
	}
	return false
}

func (f *Filler) fillDateOnce(ctx context.Context, drv browser.Driver, container string, date Date) (bool, error) {
	// (a) Three or more text/tel inputs: classify each by its accessible label
	// or placeholder and type the matching component.
	partsSel := container + "//input[@type='text' or @type='tel']"
	n, err := drv.Count(ctx, partsSel)
	if err != nil {
		return false, err
	}
	if n >= 3 {
		if err := f.fillDateParts(ctx, drv, partsSel, n, date); err != nil {
			return false, err
		}
		return true, nil
	}

	// (b) A single native date input: compose YYYY-MM-DD and assign it
	// directly with synthetic events, since simulated keystrokes are
	// unreliable for this input kind.
	nativeSel := container + "//input[@type='date']"
	if n, err := drv.Count(ctx, nativeSel); err == nil && n > 0 {
		first := fmt.Sprintf("(%s)[1]", nativeSel)
		if err := drv.ScrollIntoView(ctx, first); err != nil {
			return false, err
		}
		iso := fmt.Sprintf("%04d-%02d-%02d", date.Year, date.Month, date.Day)
		if err := drv.SetValue(ctx, first, iso); err != nil {
			return false, err
		}
		return true, nil
	}

	// (c) Fallback: type DD-MM-YYYY into the first available input and advance
	// focus so the page commits the value.
	anySel := container + "//input"
	if n, err := drv.Count(ctx, anySel); err == nil && n > 0 {
		first := fmt.Sprintf("(%s)[1]", anySel)
		if err := drv.ScrollIntoView(ctx, first); err != nil {
			return false, err
		}
		if err := drv.Click(ctx, first); err != nil {
			return false, err
		}
		if err := drv.Clear(ctx, first); err != nil {
			return false, err
		}
		text := fmt.Sprintf("%02d-%02d-%04d", date.Day, date.Month, date.Year)
		if err := drv.Type(ctx, first, text); err != nil {
			return false, err
		}
		if err := drv.Blur(ctx, first); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, fmt.Errorf("no date inputs found under %s", container)
}

// fillDateParts types zero-padded components into separate day/month/year inputs.
func (f *Filler) fillDateParts(ctx context.Context, drv browser.Driver, partsSel string, n int, date Date) error {
	for idx := 1; idx <= n; idx++ {
		input := fmt.Sprintf("(%s)[%d]", partsSel, idx)

		aria, _, _ := drv.Attribute(ctx, input, "aria-label")
		placeholder, _, _ := drv.Attribute(ctx, input, "placeholder")
		labelText := strings.ToLower(aria + placeholder)

		var component string
		switch {
		case strings.Contains(labelText, "day") || strings.Contains(labelText, "dd"):
			component = fmt.Sprintf("%02d", date.Day)
		case strings.Contains(labelText, "month") || strings.Contains(labelText, "mm"):
			component = fmt.Sprintf("%02d", date.Month)
		case strings.Contains(labelText, "year") || strings.Contains(labelText, "yyyy"):
			component = strconv.Itoa(date.Year)
		default:
			continue
		}

		if err := drv.ScrollIntoView(ctx, input); err != nil {
			return err
		}
		if err := drv.Click(ctx, input); err != nil {
			return err
		}
		if err := drv.Clear(ctx, input); err != nil {
			return err
		}
		if err := drv.Type(ctx, input, component); err != nil {
			return err
		}
	}
	return nil
}

// pause sleeps the retry interval, returning false if the context ended.
func (f *Filler) pause(ctx context.Context) bool {
	pause := f.cfg.RetryPause
	if pause <= 0 {
		pause = 500 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(pause):
		return true
	}
}

// stringify renders a spreadsheet value the way it should be typed into a
// text input. Floats with no fractional part drop the trailing ".0" that a
// naive conversion would produce for numeric spreadsheet cells.
func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case time.Time:
		return value.Format("02-01-2006")
	default:
		return fmt.Sprint(v)
	}
}
