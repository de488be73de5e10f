package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	events []*Event
	logErr error
}

func (r *recordingLogger) Log(ctx context.Context, event *Event) error {
	if r.logErr != nil {
		return r.logErr
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingLogger) Close() error { return nil }

func TestMultiLoggerFanOut(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	m := NewMultiLogger(a, b)

	event := &Event{EventType: EventTypeLogin, Status: EventStatusSuccess}
	require.NoError(t, m.Log(context.Background(), event))

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestMultiLoggerContinuesOnError(t *testing.T) {
	failing := &recordingLogger{logErr: assert.AnError}
	ok := &recordingLogger{}
	m := NewMultiLogger(failing, ok)

	err := m.Log(context.Background(), &Event{EventType: EventTypeLogout, Status: EventStatusSuccess})
	require.Error(t, err)

	// The healthy sink still received the event.
	assert.Len(t, ok.events, 1)
}

func TestMultiLoggerEmpty(t *testing.T) {
	m := NewMultiLogger()
	assert.NoError(t, m.Log(context.Background(), &Event{EventType: EventTypeLogin, Status: EventStatusSuccess}))
	assert.NoError(t, m.Close())
}
