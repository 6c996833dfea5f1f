package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/services/events"
)

// TestEventBroadcastFanOut verifies that event broadcast correctly fans out to
// multiple subscribers without blocking or leaking goroutines
func TestEventBroadcastFanOut(t *testing.T) {
	logger := arbor.NewLogger()
	bus := events.NewService(logger)
	handler := NewWebSocketHandler(bus, logger, &common.WebSocketConfig{})

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	numSubscribers := 5

	receivedMessages := make([][]TaskCompletedUpdate, numSubscribers)
	var receivedMutex sync.Mutex

	var wg sync.WaitGroup
	wg.Add(numSubscribers)

	initialGoroutines := runtime.NumGoroutine()

	subscribers := make([]*websocket.Conn, numSubscribers)
	for i := 0; i < numSubscribers; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect subscriber %d: %v", i, err)
		}
		subscribers[i] = conn

		subscriberIdx := i
		go func() {
			defer wg.Done()
			defer conn.Close()

			conn.SetReadDeadline(time.Now().Add(5 * time.Second))

			for {
				var msg WSMessage
				err := conn.ReadJSON(&msg)
				if err != nil {
					// Expected when connection closes or deadline reached
					return
				}

				// Subscribers also receive the initial status message
				if msg.Type != string(interfaces.EventTaskCompleted) {
					continue
				}

				data, err := json.Marshal(msg.Payload)
				if err != nil {
					continue
				}

				var update TaskCompletedUpdate
				if err := json.Unmarshal(data, &update); err != nil {
					continue
				}

				receivedMutex.Lock()
				receivedMessages[subscriberIdx] = append(receivedMessages[subscriberIdx], update)
				receivedMutex.Unlock()
			}
		}()
	}

	// Wait for all subscribers to connect
	time.Sleep(100 * time.Millisecond)

	if got := handler.ClientCount(); got != numSubscribers {
		t.Errorf("Expected %d connected clients, got %d", numSubscribers, got)
	}

	numEvents := 3
	for i := 0; i < numEvents; i++ {
		err := bus.PublishSync(context.Background(), interfaces.Event{
			Type: interfaces.EventTaskCompleted,
			Payload: map[string]interface{}{
				"task_id":     fmt.Sprintf("task-%d", i),
				"client_id":   "client-1",
				"analysis_id": fmt.Sprintf("analysis-%d", i),
			},
		})
		if err != nil {
			t.Fatalf("PublishSync() error = %v", err)
		}
	}

	// Allow time for messages to be received
	time.Sleep(500 * time.Millisecond)

	for _, conn := range subscribers {
		conn.Close()
	}

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
	case <-time.After(2 * time.Second):
		t.Error("Timeout waiting for subscribers to finish")
	}

	receivedMutex.Lock()
	defer receivedMutex.Unlock()

	for i, updates := range receivedMessages {
		if len(updates) != numEvents {
			t.Errorf("Subscriber %d received %d events, expected %d", i, len(updates), numEvents)
			continue
		}
		for j, update := range updates {
			if update.TaskID != fmt.Sprintf("task-%d", j) {
				t.Errorf("Subscriber %d event %d has task_id %q", i, j, update.TaskID)
			}
			if update.Timestamp.IsZero() {
				t.Errorf("Subscriber %d event %d has zero timestamp", i, j)
			}
		}
	}

	// Wait a bit for goroutines to clean up
	time.Sleep(100 * time.Millisecond)

	goroutineDiff := runtime.NumGoroutine() - initialGoroutines
	if goroutineDiff > 2 {
		t.Errorf("Potential goroutine leak detected: %d goroutines leaked", goroutineDiff)
	}

	handler.mu.RLock()
	remainingClients := len(handler.clients)
	remainingMutexes := len(handler.clientMutex)
	handler.mu.RUnlock()

	if remainingClients != 0 {
		t.Errorf("Handler still has %d clients after cleanup", remainingClients)
	}
	if remainingMutexes != 0 {
		t.Errorf("Handler still has %d client mutexes after cleanup", remainingMutexes)
	}

	t.Logf("✓ Successfully broadcast %d events to %d subscribers", numEvents, numSubscribers)
}

// TestWebSocketHandler_InitialStatus verifies the status message sent on connect
func TestWebSocketHandler_InitialStatus(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(nil, logger, &common.WebSocketConfig{})

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read initial message: %v", err)
	}

	if msg.Type != "status" {
		t.Errorf("Initial message type = %q, want %q", msg.Type, "status")
	}

	data, err := json.Marshal(msg.Payload)
	if err != nil {
		t.Fatalf("Failed to remarshal payload: %v", err)
	}

	var status StatusUpdate
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}

	if status.Service != "ONLINE" {
		t.Errorf("Status service = %q, want ONLINE", status.Service)
	}
	if status.ServerInstanceID == "" {
		t.Error("Status missing server instance ID")
	}
	if status.Clients != 1 {
		t.Errorf("Status clients = %d, want 1", status.Clients)
	}
}

// TestEventBroadcastWhitelist verifies that only whitelisted events reach clients
func TestEventBroadcastWhitelist(t *testing.T) {
	logger := arbor.NewLogger()
	bus := events.NewService(logger)
	handler := NewWebSocketHandler(bus, logger, &common.WebSocketConfig{
		AllowedEvents: []string{string(interfaces.EventTaskCompleted)},
	})

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	received := make(map[string]int)
	done := make(chan struct{})

	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(1 * time.Second))

		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received[msg.Type]++
		}
	}()

	ctx := context.Background()
	bus.PublishSync(ctx, interfaces.Event{
		Type:    interfaces.EventTaskProgress,
		Payload: map[string]interface{}{"task_id": "task-1", "client_id": "client-1", "status": "RUNNING"},
	})
	bus.PublishSync(ctx, interfaces.Event{
		Type:    interfaces.EventTaskCompleted,
		Payload: map[string]interface{}{"task_id": "task-1", "client_id": "client-1", "analysis_id": "analysis-1"},
	})

	<-done

	if received[string(interfaces.EventTaskProgress)] != 0 {
		t.Errorf("Received %d task_progress events, want 0 (not whitelisted)", received[string(interfaces.EventTaskProgress)])
	}
	if received[string(interfaces.EventTaskCompleted)] != 1 {
		t.Errorf("Received %d task_completed events, want 1", received[string(interfaces.EventTaskCompleted)])
	}
}

func TestEventSubscriber_MinLevel(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(nil, logger, nil)
	subscriber := NewEventSubscriber(handler, nil, logger, &common.WebSocketConfig{
		MinLevel: "error",
	})

	if subscriber.shouldBroadcastEvent(string(interfaces.EventTaskProgress), map[string]interface{}{}) {
		t.Error("task_progress should be dropped below error level")
	}
	if !subscriber.shouldBroadcastEvent(string(interfaces.EventTaskFailed), map[string]interface{}{}) {
		t.Error("task_failed should pass the error level floor")
	}
}

func TestEventSubscriber_ExcludePatterns(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(nil, logger, nil)
	subscriber := NewEventSubscriber(handler, nil, logger, &common.WebSocketConfig{
		ExcludePatterns: []string{"rate limit"},
	})

	excluded := map[string]interface{}{"task_id": "task-1", "error": "provider rate limit exceeded"}
	if subscriber.shouldBroadcastEvent(string(interfaces.EventTaskFailed), excluded) {
		t.Error("Payload matching exclude pattern should be dropped")
	}

	allowed := map[string]interface{}{"task_id": "task-1", "error": "snapshot vanished"}
	if !subscriber.shouldBroadcastEvent(string(interfaces.EventTaskFailed), allowed) {
		t.Error("Payload without exclude pattern should broadcast")
	}
}

func TestEventSubscriber_Throttling(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(nil, logger, nil)
	subscriber := NewEventSubscriber(handler, nil, logger, &common.WebSocketConfig{
		ThrottleIntervals: map[string]string{
			string(interfaces.EventTaskProgress): "50ms",
		},
	})

	payload := map[string]interface{}{"task_id": "task-1", "status": "RUNNING"}

	if !subscriber.shouldBroadcastEvent(string(interfaces.EventTaskProgress), payload) {
		t.Error("First event should pass the throttle")
	}
	if subscriber.shouldBroadcastEvent(string(interfaces.EventTaskProgress), payload) {
		t.Error("Immediate second event should be throttled")
	}

	time.Sleep(60 * time.Millisecond)

	if !subscriber.shouldBroadcastEvent(string(interfaces.EventTaskProgress), payload) {
		t.Error("Event after throttle interval should pass")
	}

	// Other event types are not throttled
	if !subscriber.shouldBroadcastEvent(string(interfaces.EventTaskCompleted), payload) {
		t.Error("Unthrottled event type should always pass")
	}
}

func TestEventSubscriber_InvalidThrottleInterval(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(nil, logger, nil)
	subscriber := NewEventSubscriber(handler, nil, logger, &common.WebSocketConfig{
		ThrottleIntervals: map[string]string{
			string(interfaces.EventTaskProgress): "not-a-duration",
		},
	})

	if len(subscriber.throttlers) != 0 {
		t.Errorf("Expected no throttlers for invalid interval, got %d", len(subscriber.throttlers))
	}

	payload := map[string]interface{}{"task_id": "task-1"}
	for i := 0; i < 3; i++ {
		if !subscriber.shouldBroadcastEvent(string(interfaces.EventTaskProgress), payload) {
			t.Error("Events should pass when throttler is disabled")
		}
	}
}
