package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	events []Event
}

func (r *recorder) ProgressChanged(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func TestTracker_Watermark(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec, 10)

	tr.Transferred(4)
	tr.Transferred(4)
	assert.Equal(t, []EventType{Started}, rec.types(), "below watermark only start fires")

	tr.Transferred(4)
	assert.Equal(t, []EventType{Started, BytesTransferred}, rec.types())
	assert.Equal(t, int64(12), rec.events[1].Bytes)
	assert.Equal(t, int64(12), rec.events[1].Total)

	tr.Transferred(3)
	tr.Complete()
	assert.Equal(t, []EventType{Started, BytesTransferred, BytesTransferred, Completed}, rec.types())
	assert.Equal(t, int64(3), rec.events[2].Bytes)
	assert.Equal(t, int64(15), rec.events[3].Total)
	assert.Equal(t, int64(15), tr.Total())
	assert.True(t, tr.Done())
}

func TestTracker_TerminalOnce(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec, 0)

	tr.Start()
	tr.Start()
	tr.Cancel()
	tr.Complete()
	tr.Fail(errors.New("late"))
	tr.Transferred(100)

	assert.Equal(t, []EventType{Started, Canceled}, rec.types())
}

func TestTracker_Fail(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec, 0)
	boom := errors.New("boom")

	tr.Fail(boom)
	assert.Equal(t, []EventType{Started, Failed}, rec.types())
	assert.Same(t, boom, rec.events[1].Err)
}

func TestTracker_NilListener(t *testing.T) {
	tr := NewTracker(nil, 1)
	tr.Transferred(5)
	tr.Complete()
	assert.Equal(t, int64(5), tr.Total())
}

func TestListenerFunc(t *testing.T) {
	var got []EventType
	l := ListenerFunc(func(e Event) { got = append(got, e.Type) })
	tr := NewTracker(l, DefaultWatermark)
	tr.Transferred(DefaultWatermark)
	tr.Complete()
	assert.Equal(t, []EventType{Started, BytesTransferred, Completed}, got)
}

func TestEventType(t *testing.T) {
	assert.Equal(t, "started", Started.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", EventType(0).String())
	assert.True(t, Completed.Terminal())
	assert.True(t, Canceled.Terminal())
	assert.False(t, BytesTransferred.Terminal())
}
