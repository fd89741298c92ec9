package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
	"github.com/dpatel76/synapse-workflow/internal/domain/event"
)

type testLogger struct {
	errorCount int
}

func (l *testLogger) Info(msg string, keysAndValues ...interface{}) {}
func (l *testLogger) Error(msg string, keysAndValues ...interface{}) {
	l.errorCount++
}

func TestDispatcher_DispatchInOrder(t *testing.T) {
	d := NewDispatcher(&testLogger{})

	var order []string
	d.Subscribe(event.TypePhaseStarted, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(event.TypePhaseStarted, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	evt := event.NewEvent(event.TypePhaseStarted, 1, entity.PhasePlanning, "tester-1")
	d.Dispatch(context.Background(), evt)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handlers ran out of order: %v", order)
	}
}

func TestDispatcher_HandlerErrorDoesNotStopChain(t *testing.T) {
	logger := &testLogger{}
	d := NewDispatcher(logger)

	secondRan := false
	d.Subscribe(event.TypeVersionApproved, "failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("boom")
	})
	d.Subscribe(event.TypeVersionApproved, "following", func(ctx context.Context, evt *event.Event) error {
		secondRan = true
		return nil
	})

	evt := event.NewEvent(event.TypeVersionApproved, 1, entity.PhasePlanning, "owner-1")
	d.Dispatch(context.Background(), evt)

	if !secondRan {
		t.Error("second handler did not run after first failed")
	}
	if logger.errorCount != 1 {
		t.Errorf("expected 1 logged error, got %d", logger.errorCount)
	}
}

func TestDispatcher_NoHandlersIsNoop(t *testing.T) {
	d := NewDispatcher(&testLogger{})

	evt := event.NewEvent(event.TypePhaseCompleted, 1, entity.PhasePlanning, "tester-1")
	d.Dispatch(context.Background(), evt)
}

func TestDispatcher_ListHandlers(t *testing.T) {
	d := NewDispatcher(&testLogger{})

	d.Subscribe(event.TypeVersionSubmitted, "router", func(ctx context.Context, evt *event.Event) error {
		return nil
	})

	infos := d.ListHandlers(event.TypeVersionSubmitted)
	if len(infos) != 1 || infos[0].Name != "router" {
		t.Errorf("unexpected handlers: %+v", infos)
	}

	if got := d.ListHandlers(event.TypeVersionRejected); len(got) != 0 {
		t.Errorf("expected no handlers for unsubscribed type, got %d", len(got))
	}
}

func TestDispatcher_HandlersAreTypeScoped(t *testing.T) {
	d := NewDispatcher(&testLogger{})

	called := false
	d.Subscribe(event.TypeVersionSubmitted, "router", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	evt := event.NewEvent(event.TypeVersionRejected, 1, entity.PhasePlanning, "owner-1")
	d.Dispatch(context.Background(), evt)

	if called {
		t.Error("handler ran for a different event type")
	}
}
