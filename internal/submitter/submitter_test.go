// internal/submitter/submitter_test.go
package submitter

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"baliance.com/gooxml/spreadsheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/divrinavyas/google-form-submitter/internal/browser"
	"github.com/divrinavyas/google-form-submitter/internal/browser/drivertest"
	"github.com/divrinavyas/google-form-submitter/internal/config"
	"github.com/divrinavyas/google-form-submitter/internal/form"
)

const testFormURL = "https://docs.google.com/forms/d/e/test/viewform"

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Submitter.RowInterval = time.Millisecond
	cfg.Submitter.RetryPause = time.Millisecond
	return cfg
}

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	wb := spreadsheet.New()
	sheet := wb.AddSheet()
	for _, rowValues := range rows {
		row := sheet.AddRow()
		for _, v := range rowValues {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "rows.xlsx")
	require.NoError(t, wb.SaveToFile(path))
	return path
}

// scriptForm populates a fake driver with a two-question form page plus a
// submit control and confirmation text.
func scriptForm(drv *drivertest.Fake) (nameInput, emailInput string) {
	drv.Present("//body")
	drv.Counts[questionContainerSelector] = 2

	for i, q := range []struct{ label, inputType string }{
		{"Full Name *", "text"},
		{"Email *", "email"},
	} {
		container := fmt.Sprintf("(%s)[%d]", questionContainerSelector, i+1)
		inputSel := fmt.Sprintf("%s//input | %s//textarea", container, container)
		drv.Texts[container+"//div[@role='heading']"] = q.label
		drv.Counts[inputSel] = 1
		drv.Attributes[inputSel] = map[string]string{"type": q.inputType}
	}

	drv.Counts[submitControlSelector] = 1
	drv.Counts[confirmationSelector] = 1

	c1 := fmt.Sprintf("(%s)[1]", questionContainerSelector)
	c2 := fmt.Sprintf("(%s)[2]", questionContainerSelector)
	return fmt.Sprintf("%s//input | %s//textarea", c1, c1),
		fmt.Sprintf("%s//input | %s//textarea", c2, c2)
}

func newTestSubmitter(drv *drivertest.Fake) *Submitter {
	return New(testConfig(), zap.NewNop(), func(ctx context.Context) (browser.Driver, error) {
		return drv, nil
	})
}

func TestRunSubmitsEveryRow(t *testing.T) {
	drv := drivertest.New()
	nameInput, emailInput := scriptForm(drv)
	path := writeWorkbook(t, [][]string{
		{"Full Name", "Email"},
		{"Ada Lovelace", "ada@example.com"},
		{"Alan Turing", "alan@example.com"},
	})

	var progressRows []int
	progress := func(current, total, success, fail int, message string) {
		progressRows = append(progressRows, current)
		assert.Equal(t, 2, total)
	}

	result, err := newTestSubmitter(drv).Run(context.Background(), testFormURL, path, progress)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailCount)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []int{1, 2}, progressRows)

	// The last row's values are what remains on the fake page.
	assert.Equal(t, "Alan Turing", drv.Values[nameInput])
	assert.Equal(t, "alan@example.com", drv.Values[emailInput])

	// One initial navigation plus one fresh load per row.
	assert.Len(t, drv.CallsMatching("navigate"), 3)
	assert.Len(t, drv.CallsMatching("click "+submitControlSelector), 2)
	assert.True(t, drv.Closed)
}

func TestRunMarksRowFailedWhenSubmitControlMissing(t *testing.T) {
	drv := drivertest.New()
	scriptForm(drv)
	drv.Counts[submitControlSelector] = 0
	path := writeWorkbook(t, [][]string{
		{"Full Name", "Email"},
		{"Ada Lovelace", "ada@example.com"},
	})

	result, err := newTestSubmitter(drv).Run(context.Background(), testFormURL, path, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 1, result.FailCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "row 1")
	assert.Contains(t, result.Errors[0], "submit control not found")
}

func TestRunMarksRowFailedWithoutConfirmation(t *testing.T) {
	drv := drivertest.New()
	scriptForm(drv)
	drv.Counts[confirmationSelector] = 0
	path := writeWorkbook(t, [][]string{
		{"Full Name", "Email"},
		{"Ada Lovelace", "ada@example.com"},
	})

	result, err := newTestSubmitter(drv).Run(context.Background(), testFormURL, path, nil)
	require.NoError(t, err)

	// The click happened, but an unconfirmed submission is not a success.
	assert.Len(t, drv.CallsMatching("click "+submitControlSelector), 1)
	assert.Equal(t, 1, result.FailCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "confirmation not received")
}

func TestRunSkipsUnmatchedColumns(t *testing.T) {
	drv := drivertest.New()
	scriptForm(drv)
	path := writeWorkbook(t, [][]string{
		{"Full Name", "Email", "Nickname"},
		{"Ada Lovelace", "ada@example.com", "the countess"},
	})

	result, err := newTestSubmitter(drv).Run(context.Background(), testFormURL, path, nil)
	require.NoError(t, err)

	// An unmatched column is skipped, not a failure.
	assert.Equal(t, 1, result.SuccessCount)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Outcomes, 1)
	assert.Empty(t, result.Outcomes[0].FailedFields)
}

func TestRunMatchesColumnsDespiteCaseAndWhitespace(t *testing.T) {
	drv := drivertest.New().Present("//body")
	drv.Counts[questionContainerSelector] = 3

	for i, q := range []struct{ label, inputType string }{
		{"Full Name *", "text"},
		{"Email Address *", "email"},
		{"Date of Birth *", "date"},
	} {
		container := fmt.Sprintf("(%s)[%d]", questionContainerSelector, i+1)
		inputSel := fmt.Sprintf("%s//input | %s//textarea", container, container)
		drv.Texts[container+"//div[@role='heading']"] = q.label
		drv.Counts[inputSel] = 1
		drv.Attributes[inputSel] = map[string]string{"type": q.inputType}
	}
	// The date question holds a single generic input; the fallback strategy
	// types the DD-MM-YYYY form into it.
	dateContainer := fmt.Sprintf("(%s)[3]", questionContainerSelector)
	drv.Counts[dateContainer+"//input"] = 1

	drv.Counts[submitControlSelector] = 1
	drv.Counts[confirmationSelector] = 1

	// Headers differ from the labels in case, decoration and padding.
	path := writeWorkbook(t, [][]string{
		{"Full Name ", "EMAIL ADDRESS", "date of birth"},
		{"Asha", "a@x.com", "15-08-1990"},
	})

	result, err := newTestSubmitter(drv).Run(context.Background(), testFormURL, path, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	assert.Empty(t, result.Errors)
	c1 := fmt.Sprintf("(%s)[1]", questionContainerSelector)
	c2 := fmt.Sprintf("(%s)[2]", questionContainerSelector)
	assert.Equal(t, "Asha", drv.Values[fmt.Sprintf("%s//input | %s//textarea", c1, c1)])
	assert.Equal(t, "a@x.com", drv.Values[fmt.Sprintf("%s//input | %s//textarea", c2, c2)])
	assert.Equal(t, "15-08-1990", drv.Values["("+dateContainer+"//input)[1]"])
}

func TestRunRecordsFailedFieldButStillSubmits(t *testing.T) {
	drv := drivertest.New()
	nameInput, _ := scriptForm(drv)
	drv.FlakyTypes[nameInput] = 99
	path := writeWorkbook(t, [][]string{
		{"Full Name", "Email"},
		{"Ada Lovelace", "ada@example.com"},
	})

	result, err := newTestSubmitter(drv).Run(context.Background(), testFormURL, path, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailCount)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, []string{"Full Name *"}, result.Outcomes[0].FailedFields)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `failed to fill field "Full Name *"`)

	// Best-effort semantics: the submission is still attempted.
	assert.Len(t, drv.CallsMatching("click "+submitControlSelector), 1)
}

func TestRunFailsWhenNoFieldsMapped(t *testing.T) {
	drv := drivertest.New().Present("//body")
	// One container renders, but it holds no fillable input, so the mapping
	// comes back empty.
	drv.Counts[questionContainerSelector] = 1
	drv.Texts[fmt.Sprintf("(%s)[1]", questionContainerSelector)+"//div[@role='heading']"] = "Pick one"
	path := writeWorkbook(t, [][]string{
		{"Full Name"},
		{"Ada Lovelace"},
	})

	_, err := newTestSubmitter(drv).Run(context.Background(), testFormURL, path, nil)
	assert.ErrorIs(t, err, ErrNoFieldsMapped)

	// The session is released even on a fatal mapping error, and no row was
	// ever processed.
	assert.True(t, drv.Closed)
	assert.Empty(t, drv.CallsMatching("click "+submitControlSelector))
}

func TestRunPropagatesMappingErrorAfterCleanup(t *testing.T) {
	drv := drivertest.New().Present("//body")
	drv.Source = "<html>Sorry, you need access</html>"
	path := writeWorkbook(t, [][]string{
		{"Full Name"},
		{"Ada Lovelace"},
	})

	_, err := newTestSubmitter(drv).Run(context.Background(), testFormURL, path, nil)
	assert.ErrorIs(t, err, form.ErrAccessDenied)
	assert.True(t, drv.Closed)
}

func TestRunUnreadableDataset(t *testing.T) {
	drv := drivertest.New()
	opened := false
	sub := New(testConfig(), zap.NewNop(), func(ctx context.Context) (browser.Driver, error) {
		opened = true
		return drv, nil
	})

	_, err := sub.Run(context.Background(), testFormURL, filepath.Join(t.TempDir(), "absent.xlsx"), nil)
	require.Error(t, err)
	// No browser is opened when the input cannot be read.
	assert.False(t, opened)
}

func TestRunEmptyDataset(t *testing.T) {
	drv := drivertest.New()
	path := writeWorkbook(t, [][]string{{"Full Name"}})

	result, err := newTestSubmitter(drv).Run(context.Background(), testFormURL, path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalRows)
	assert.Empty(t, drv.CallsMatching("navigate"))
}
