//go:build unit

package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests mutate package globals and therefore do not run in parallel.

func TestErrorReporterReceivesPanic(t *testing.T) {
	reporter := &captureReporter{}
	SetErrorReporter(reporter)
	SetProductionMode(false)

	t.Cleanup(func() { SetErrorReporter(nil) })

	HandlePanicValue(context.Background(), nil, errors.New("boom"), "custodial", "poll")

	require.Len(t, reporter.errs, 1)
	assert.Contains(t, reporter.errs[0].Error(), "boom")
	assert.Equal(t, "custodial", reporter.tags[0]["component"])
	assert.NotEmpty(t, reporter.tags[0]["stack_trace"])
}

func TestProductionModeRedacts(t *testing.T) {
	reporter := &captureReporter{}
	SetErrorReporter(reporter)
	SetProductionMode(true)

	t.Cleanup(func() {
		SetErrorReporter(nil)
		SetProductionMode(false)
	})

	logger := &testLogger{}
	HandlePanicValue(context.Background(), logger, "private key 0xabc", "direct", "sign")

	require.Len(t, reporter.errs, 1)
	assert.Equal(t, redactedPanicMsg, reporter.errs[0].Error())
	assert.NotContains(t, reporter.tags[0], "stack_trace")

	entries := logger.all()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].fields, "stack_trace")
}
