package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySink struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	delivered []string
}

func (s *flakySink) Publish(_ context.Context, name string, _ interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFirst {
		return errors.New("broker unavailable")
	}
	s.delivered = append(s.delivered, name)
	return nil
}

func (s *flakySink) snapshot() (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]string(nil), s.delivered...)
}

func TestDispatcherDeliversQueuedEvents(t *testing.T) {
	sink := &flakySink{}
	d := NewDispatcher(sink, DispatcherConfig{Workers: 2, BufferSize: 8}, nil)
	d.Start(context.Background())

	require.NoError(t, d.Publish(context.Background(), SubjectEnrollmentCreated, EnrollmentEvent{EnrollmentID: "a"}))
	require.NoError(t, d.Publish(context.Background(), SubjectEnrollmentCancelled, EnrollmentEvent{EnrollmentID: "a"}))

	d.Stop(context.Background())
	_, delivered := sink.snapshot()
	assert.ElementsMatch(t, []string{SubjectEnrollmentCreated, SubjectEnrollmentCancelled}, delivered)
	assert.ErrorIs(t, d.Publish(context.Background(), SubjectEnrollmentCreated, nil), ErrDispatcherStopped)
}

func TestDispatcherRetriesFailedDelivery(t *testing.T) {
	sink := &flakySink{failFirst: 2}
	d := NewDispatcher(sink, DispatcherConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond}, nil)
	d.Start(context.Background())

	require.NoError(t, d.Publish(context.Background(), SubjectEnrollmentCreated, nil))
	d.Stop(context.Background())

	calls, delivered := sink.snapshot()
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{SubjectEnrollmentCreated}, delivered)
}

func TestDispatcherDropsAfterMaxRetries(t *testing.T) {
	sink := &flakySink{failFirst: 10}
	d := NewDispatcher(sink, DispatcherConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond}, nil)
	d.Start(context.Background())

	require.NoError(t, d.Publish(context.Background(), SubjectEnrollmentCreated, nil))
	d.Stop(context.Background())

	calls, delivered := sink.snapshot()
	assert.Equal(t, 2, calls)
	assert.Empty(t, delivered)
}

func TestDispatcherRejectsWhenFull(t *testing.T) {
	d := NewDispatcher(&flakySink{}, DispatcherConfig{Workers: 1, BufferSize: 1}, nil)

	require.NoError(t, d.Publish(context.Background(), SubjectEnrollmentCreated, nil))
	assert.ErrorIs(t, d.Publish(context.Background(), SubjectEnrollmentCreated, nil), ErrDispatcherFull)

	d.Stop(context.Background())
}
