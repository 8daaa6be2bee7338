// internal/submitter/submitter.go
package submitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/divrinavyas/google-form-submitter/internal/browser"
	"github.com/divrinavyas/google-form-submitter/internal/config"
	"github.com/divrinavyas/google-form-submitter/internal/dataset"
	"github.com/divrinavyas/google-form-submitter/internal/form"
)

// ErrNoFieldsMapped aborts a run whose mapping phase produced an empty field
// map. Submitting rows against a form with no fillable questions is never
// useful.
var ErrNoFieldsMapped = errors.New("no form fields mapped")

const (
	// questionContainerSelector is the broad presence probe used after each
	// per-row reload. Legacy-markup forms are still handled: the wait is
	// best-effort and the descriptors carry their own container locators.
	questionContainerSelector = `//div[@role='listitem']`

	// submitControlSelector locates the activatable submit control by its
	// accessible label.
	submitControlSelector = `//div[@role='button' and @aria-label='Submit']`

	// confirmationSelector matches the post-submit confirmation text. Either
	// phrasing counts; anything else means the submission is unconfirmed.
	confirmationSelector = `//*[contains(text(), 'Your response has been recorded') or contains(text(), 'submitted')]`

	sessionCloseTimeout = 15 * time.Second
)

// consentButtonLabels are the affirmative labels probed when dismissing a
// consent or continuation overlay before mapping. Strictly best-effort.
var consentButtonLabels = []string{"Accept all", "I agree", "Accept", "Continue"}

// SessionOpener opens a browser session for a run. Production wiring closes
// over a browser.Manager; tests return fakes.
type SessionOpener func(ctx context.Context) (browser.Driver, error)

// Submitter drives full submission runs: load the rows, map the form once,
// then reload-fill-submit once per row against a single browser session.
type Submitter struct {
	cfg    *config.Config
	logger *zap.Logger
	open   SessionOpener
	mapper *form.Mapper
	filler *form.Filler
}

// New builds a Submitter.
func New(cfg *config.Config, logger *zap.Logger, open SessionOpener) *Submitter {
	return &Submitter{
		cfg:    cfg,
		logger: logger.Named("submitter"),
		open:   open,
		mapper: form.NewMapper(cfg, logger),
		filler: form.NewFiller(cfg.Submitter, logger),
	}
}

// Run executes a complete submission run and returns the aggregated result.
// Rows are processed strictly in input order, one at a time; the browser
// session is released on every exit path. Fatal errors (unreadable dataset,
// failed mapping, cancellation) propagate after cleanup; per-row failures are
// recorded in the result and never abort the run.
func (s *Submitter) Run(ctx context.Context, formURL, datasetPath string, progress Progress) (*RunResult, error) {
	rows, err := dataset.Load(datasetPath, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load input rows: %w", err)
	}

	result := &RunResult{TotalRows: len(rows), Errors: []string{}}
	if len(rows) == 0 {
		s.logger.Warn("Input dataset has no rows; nothing to submit.", zap.String("path", datasetPath))
		return result, nil
	}

	drv, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
		defer cancel()
		if err := drv.Close(closeCtx); err != nil {
			s.logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}()

	if err := drv.Navigate(ctx, formURL); err != nil {
		return nil, fmt.Errorf("initial navigation to %q failed: %w", formURL, err)
	}
	s.dismissConsent(ctx, drv)

	mapping, err := s.mapper.ExtractMapping(ctx, drv)
	if err != nil {
		return nil, err
	}
	if len(mapping) == 0 {
		return nil, ErrNoFieldsMapped
	}
	s.logger.Info("Field map built.", zap.Int("fields", len(mapping)))

	// One submission per interval. The limiter starts with a full token, so
	// the first row proceeds immediately.
	limiter := rate.NewLimiter(rate.Every(s.cfg.Submitter.RowInterval), 1)

	for i, row := range rows {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("run cancelled at row %d: %w", i+1, err)
		}

		outcome := s.submitRow(ctx, drv, mapping, formURL, row, i+1)

		var messages []string
		for _, field := range outcome.FailedFields {
			messages = append(messages, fmt.Sprintf("row %d: failed to fill field %q", outcome.RowIndex, field))
		}
		if outcome.ErrorMessage != "" {
			messages = append(messages, outcome.ErrorMessage)
		}
		result.record(outcome, messages...)

		if progress != nil {
			message := fmt.Sprintf("row %d submitted", outcome.RowIndex)
			if !outcome.Success {
				message = fmt.Sprintf("row %d failed", outcome.RowIndex)
				if outcome.ErrorMessage != "" {
					message = outcome.ErrorMessage
				}
			}
			progress(i+1, len(rows), result.SuccessCount, result.FailCount, message)
		}
	}

	s.logger.Info("Run complete.",
		zap.Int("total", result.TotalRows),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailCount))
	return result, nil
}

// submitRow performs one full submission cycle for a single row. It never
// returns an error: every failure is folded into the outcome. Fill failures
// do not abort the row; the submission is still attempted with whatever was
// filled.
func (s *Submitter) submitRow(ctx context.Context, drv browser.Driver, mapping form.FieldMap, formURL string, row dataset.Row, rowIndex int) SubmissionOutcome {
	outcome := SubmissionOutcome{RowIndex: rowIndex}
	log := s.logger.With(zap.Int("row", rowIndex))

	// Fresh load per row; the target UI carries no state between submissions.
	if err := drv.Navigate(ctx, formURL); err != nil {
		outcome.ErrorMessage = fmt.Sprintf("row %d: failed to reload form: %v", rowIndex, err)
		return outcome
	}
	if err := drv.WaitPresent(ctx, questionContainerSelector, s.cfg.Network.ElementTimeout); err != nil {
		log.Warn("No question containers appeared after reload.", zap.Error(err))
	}

	for _, column := range row.Columns {
		value, ok := row.Value(column)
		if !ok {
			continue
		}
		desc, ok := mapping[form.Normalize(column)]
		if !ok {
			log.Info("Column has no matching form question; skipping.", zap.String("column", column))
			continue
		}
		if !s.filler.Fill(ctx, drv, desc, value) {
			log.Warn("Field fill failed.", zap.String("field", desc.Label))
			outcome.FailedFields = append(outcome.FailedFields, desc.Label)
		}
	}

	if err := drv.WaitPresent(ctx, submitControlSelector, s.cfg.Network.ElementTimeout); err != nil {
		outcome.ErrorMessage = fmt.Sprintf("row %d: submit control not found", rowIndex)
		return outcome
	}
	if err := drv.Click(ctx, submitControlSelector); err != nil {
		outcome.ErrorMessage = fmt.Sprintf("row %d: failed to activate submit control: %v", rowIndex, err)
		return outcome
	}

	// A click without a confirmation is not a success.
	if err := drv.WaitPresent(ctx, confirmationSelector, s.cfg.Network.ConfirmationTimeout); err != nil {
		outcome.ErrorMessage = fmt.Sprintf("row %d: confirmation not received after submit", rowIndex)
		return outcome
	}

	outcome.Success = len(outcome.FailedFields) == 0
	if outcome.Success {
		log.Info("Row submitted and confirmed.")
	} else {
		log.Warn("Row submitted with failed fields.", zap.Strings("failed_fields", outcome.FailedFields))
	}
	return outcome
}

// dismissConsent clicks through a consent or continuation overlay if one is
// present. Failures are ignored; a missed overlay surfaces later as a mapping
// failure anyway.
func (s *Submitter) dismissConsent(ctx context.Context, drv browser.Driver) {
	for _, label := range consentButtonLabels {
		sel := fmt.Sprintf(`//button[contains(., %q)] | //div[@role='button'][contains(., %q)]`, label, label)
		n, err := drv.Count(ctx, sel)
		if err != nil || n == 0 {
			continue
		}
		if err := drv.Click(ctx, sel); err != nil {
			s.logger.Debug("Could not click consent control.", zap.String("label", label), zap.Error(err))
			continue
		}
		s.logger.Info("Dismissed consent overlay.", zap.String("label", label))
		return
	}
}
