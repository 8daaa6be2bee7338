// internal/form/mapper.go
package form

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/divrinavyas/google-form-submitter/internal/browser"
	"github.com/divrinavyas/google-form-submitter/internal/config"
)

// Fatal mapping errors. All abort the run; the caller distinguishes them with
// errors.Is.
var (
	// ErrFormNotLoaded means no body-equivalent root rendered within the bounded wait.
	ErrFormNotLoaded = errors.New("form page failed to load")
	// ErrAccessDenied means the page content signals restricted access.
	ErrAccessDenied = errors.New("form access denied")
	// ErrNoQuestions means no discovery strategy located any question containers.
	ErrNoQuestions = errors.New("no form questions found")
)

// discoveryStrategy is one probe in the prioritized fallback chain against
// UI-markup drift. The first strategy whose selector yields at least one
// match wins. New strategies are appended here without touching callers.
type discoveryStrategy struct {
	name     string
	selector string
}

var discoveryStrategies = []discoveryStrategy{
	{"role-listitem", `//div[@role='listitem']`},
	{"legacy-question-root", `//div[contains(@class, 'freebirdFormviewerComponentsQuestionBaseRoot')]`},
	{"legacy-numbered-item", `//div[contains(@class, 'freebirdFormviewerViewNumberedItemContainer')]`},
	{"data-params", `//div[@data-params]`},
}

// Mapper discovers the visible input questions on a loaded form page and
// builds the normalized-label field map used for the rest of the run.
type Mapper struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMapper builds a Mapper.
func NewMapper(cfg *config.Config, logger *zap.Logger) *Mapper {
	return &Mapper{
		cfg:    cfg,
		logger: logger.Named("mapper"),
	}
}

// ExtractMapping waits for page readiness, probes the discovery strategies in
// order, and records a FieldDescriptor for every question container holding a
// primitive input. Containers without one (choice and dropdown questions,
// which this system does not fill) are skipped.
func (m *Mapper) ExtractMapping(ctx context.Context, drv browser.Driver) (FieldMap, error) {
	// 1. The page must render a body at all before anything else is worth trying.
	if err := drv.WaitPresent(ctx, "//body", m.cfg.Network.PageReadyTimeout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormNotLoaded, err)
	}

	m.captureDiagnostics(ctx, drv)

	// 2. Inspect the page source for access restrictions.
	if source, err := drv.PageSource(ctx); err == nil {
		lower := strings.ToLower(source)
		if strings.Contains(lower, "sign in") || strings.Contains(lower, "login") {
			m.logger.Warn("Form may require sign-in.")
		}
		if strings.Contains(lower, "sorry") && strings.Contains(lower, "access") {
			return nil, ErrAccessDenied
		}
	}

	// 3. Probe the strategy chain.
	containerSel, count := m.discoverContainers(ctx, drv)
	if count == 0 {
		return nil, ErrNoQuestions
	}

	// 4. Describe each container, in document order.
	mapping := make(FieldMap, count)
	for ordinal := 1; ordinal <= count; ordinal++ {
		desc, ok := m.describeQuestion(ctx, drv, containerSel, ordinal)
		if !ok {
			continue
		}

		key := Normalize(desc.Label)
		if prev, exists := mapping[key]; exists {
			// Last-discovered wins, matching the historical behavior. The
			// collision is surfaced because silently losing a question is a
			// likely sign of a mis-designed form.
			m.logger.Warn("Duplicate normalized label; later question replaces earlier one.",
				zap.String("label", key),
				zap.Int("previous_ordinal", prev.Ordinal),
				zap.Int("ordinal", desc.Ordinal))
		}
		mapping[key] = desc
		m.logger.Info("Mapped question.",
			zap.String("label", desc.Label),
			zap.Int("ordinal", desc.Ordinal),
			zap.String("kind", string(desc.Kind)))
	}

	return mapping, nil
}

// discoverContainers walks the fallback chain and returns the first selector
// that matches at least one question container, with its match count.
func (m *Mapper) discoverContainers(ctx context.Context, drv browser.Driver) (string, int) {
	for _, strategy := range discoveryStrategies {
		// Each probe gets its own bounded presence wait; a miss just moves on
		// to the next strategy.
		if err := drv.WaitPresent(ctx, strategy.selector, m.cfg.Network.ElementTimeout); err != nil {
			m.logger.Debug("Discovery strategy found nothing.",
				zap.String("strategy", strategy.name))
			continue
		}
		count, err := drv.Count(ctx, strategy.selector)
		if err != nil || count == 0 {
			continue
		}
		m.logger.Info("Discovered question containers.",
			zap.String("strategy", strategy.name),
			zap.Int("count", count))
		return strategy.selector, count
	}
	return "", 0
}

// describeQuestion reads the heading and locates the primitive input for one
// container. Returns ok=false when the container has no heading or no
// fillable input.
func (m *Mapper) describeQuestion(ctx context.Context, drv browser.Driver, containerSel string, ordinal int) (FieldDescriptor, bool) {
	container := fmt.Sprintf("(%s)[%d]", containerSel, ordinal)

	label, err := drv.Text(ctx, container+"//div[@role='heading']")
	if err != nil || strings.TrimSpace(label) == "" {
		return FieldDescriptor{}, false
	}

	inputSel := fmt.Sprintf("%s//input | %s//textarea", container, container)
	n, err := drv.Count(ctx, inputSel)
	if err != nil || n == 0 {
		// No primitive input: a choice or dropdown question.
		m.logger.Debug("Skipping question without a primitive input.", zap.String("label", label))
		return FieldDescriptor{}, false
	}

	kind := m.classifyInput(ctx, drv, container, inputSel)
	return FieldDescriptor{
		InputLocator:     inputSel,
		ContainerLocator: container,
		Kind:             kind,
		Ordinal:          ordinal,
		Label:            label,
	}, true
}

// classifyInput determines the interaction kind from the input's type
// attribute, falling back to the tag name for textareas.
func (m *Mapper) classifyInput(ctx context.Context, drv browser.Driver, container, inputSel string) FieldKind {
	if t, ok, err := drv.Attribute(ctx, inputSel, "type"); err == nil && ok && t != "" {
		return KindFromType(t)
	}
	if n, err := drv.Count(ctx, container+"//textarea"); err == nil && n > 0 {
		return KindTextarea
	}
	return KindOther
}

// captureDiagnostics saves a screenshot of the loaded page when a path is
// configured. Strictly best-effort: failures are logged and ignored.
func (m *Mapper) captureDiagnostics(ctx context.Context, drv browser.Driver) {
	if url, err := drv.CurrentURL(ctx); err == nil {
		title, _ := drv.Title(ctx)
		m.logger.Info("Form page loaded.", zap.String("url", url), zap.String("title", title))
	}

	path := m.cfg.Submitter.ScreenshotPath
	if path == "" {
		return
	}
	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	buf, err := drv.Screenshot(shotCtx)
	if err != nil {
		m.logger.Debug("Could not capture diagnostic screenshot.", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		m.logger.Debug("Could not write diagnostic screenshot.", zap.Error(err))
		return
	}
	m.logger.Info("Diagnostic screenshot saved.", zap.String("path", path))
}
