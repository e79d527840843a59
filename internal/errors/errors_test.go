package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *recordingReporter) IsEnabled() bool               { return true }

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.GetTimestamp().IsZero())
}

func TestBuilderContext(t *testing.T) {
	ee := Newf("call %d failed", 7).
		Component("bridge").
		Category(CategoryBridge).
		Priority("bogus").
		Context("request_id", uint64(7)).
		Build()

	assert.Equal(t, "call 7 failed", ee.Error())
	assert.Equal(t, "bridge", ee.GetComponent())
	assert.Equal(t, PriorityMedium, ee.GetPriority())
	assert.Equal(t, uint64(7), ee.GetContext()["request_id"])
}

func TestSentinelIdentity(t *testing.T) {
	errA := New(NewStd("a")).Category(CategoryState).Build()
	errB := New(NewStd("b")).Category(CategoryState).Build()

	wrapped := New(errA).Component("capture").Context("operation", "start").Build()

	assert.ErrorIs(t, wrapped, errA)
	assert.NotErrorIs(t, wrapped, errB, "same category must not imply equality")
	assert.Equal(t, CategoryState, wrapped.Category, "category is inherited from the wrapped error")
	assert.True(t, IsCategory(wrapped, CategoryState))
}

func TestNilErrorMessage(t *testing.T) {
	ee := New(nil).Component("pool").Category(CategoryResource).Build()
	assert.Equal(t, "pool: resource", ee.Error())
}

func TestTelemetryReporterHook(t *testing.T) {
	r := &recordingReporter{}
	SetTelemetryReporter(r)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := Newf("device lost").Category(CategoryDevice).Build()

	require.Len(t, r.reported, 1)
	assert.Same(t, ee, r.reported[0])
}

func TestScrubMessage(t *testing.T) {
	got := scrubMessage("open /home/alice/recordings/take1.wav: permission denied")
	assert.Equal(t, "open /home/[USER]/recordings/take1.wav: permission denied", got)

	got = scrubMessage("GET https://example.com/upload?token=abc failed")
	assert.Equal(t, "GET https://example.com/upload?[REDACTED] failed", got)
}

func TestErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("capture").
		Category(CategoryDevice).
		Context("operation", "select_device").
		Build()
	assert.Equal(t, "Capture Audio device Select Device", errorTitle(ee))
}
