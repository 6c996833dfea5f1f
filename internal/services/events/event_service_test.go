package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

func TestEventService_PublishSync(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var received atomic.Int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		if event.Type != interfaces.EventAnalysisCreated {
			t.Errorf("Unexpected event type %s", event.Type)
		}
		payload, ok := event.Payload.(map[string]interface{})
		if !ok || payload["analysis_id"] != "a-1" {
			t.Errorf("Unexpected payload %+v", event.Payload)
		}
		received.Add(1)
		return nil
	}

	if err := service.Subscribe(interfaces.EventAnalysisCreated, handler); err != nil {
		t.Fatal(err)
	}

	err := service.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventAnalysisCreated,
		Payload: map[string]interface{}{"analysis_id": "a-1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if received.Load() != 1 {
		t.Errorf("Expected 1 delivery, got %d", received.Load())
	}
}

func TestEventService_PublishSyncCollectsErrors(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	failing := func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("boom")
	}
	if err := service.Subscribe(interfaces.EventTaskFailed, failing); err != nil {
		t.Fatal(err)
	}

	if err := service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventTaskFailed}); err == nil {
		t.Error("Expected handler error to surface")
	}
}

func TestEventService_PublishAsync(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	done := make(chan struct{})
	handler := func(ctx context.Context, event interfaces.Event) error {
		close(done)
		return nil
	}
	if err := service.Subscribe(interfaces.EventTaskProgress, handler); err != nil {
		t.Fatal(err)
	}

	if err := service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventTaskProgress}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Handler was not invoked")
	}
}

func TestEventService_Unsubscribe(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var received atomic.Int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		received.Add(1)
		return nil
	}

	if err := service.Subscribe(interfaces.EventCatalogSynced, handler); err != nil {
		t.Fatal(err)
	}
	if err := service.Unsubscribe(interfaces.EventCatalogSynced, handler); err != nil {
		t.Fatalf("Failed to unsubscribe: %v", err)
	}

	if err := service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventCatalogSynced}); err != nil {
		t.Fatal(err)
	}
	if received.Load() != 0 {
		t.Errorf("Expected no deliveries after unsubscribe, got %d", received.Load())
	}

	// Unknown handler
	other := func(ctx context.Context, event interfaces.Event) error { return nil }
	if err := service.Unsubscribe(interfaces.EventCatalogSynced, other); err == nil {
		t.Error("Expected error unsubscribing unknown handler")
	}
}
