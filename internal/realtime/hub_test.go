package realtime

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/akvora/backend/internal/metrics"
)

func newTestClient(id string, channels ...string) *Client {
	return &Client{
		ID:       id,
		Channels: channels,
		send:     make(chan WSMessage, 8),
		logger:   zap.NewNop(),
	}
}

func TestHubEmitReachesChannelMembers(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	admin := newTestClient("a1", ChannelAdmin)
	user := newTestClient("u1", UserChannel("ext_1"))
	hub.Register(admin)
	hub.Register(user)

	eventID := uuid.New()
	hub.Emit(UserChannel("ext_1"), EventRegistrationUpdated, RegistrationUpdatedPayload{
		EventID: eventID,
		Status:  "approved",
	})

	select {
	case msg := <-user.send:
		if msg.Event != EventRegistrationUpdated {
			t.Errorf("event = %q, want %q", msg.Event, EventRegistrationUpdated)
		}
		var p RegistrationUpdatedPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if p.EventID != eventID || p.Status != "approved" {
			t.Errorf("payload = %+v", p)
		}
	default:
		t.Fatal("user received no message")
	}

	select {
	case msg := <-admin.send:
		t.Errorf("admin received message for user channel: %+v", msg)
	default:
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	c := newTestClient("c1", ChannelAdmin)
	hub.Register(c)
	if got := hub.ClientCount(ChannelAdmin); got != 1 {
		t.Fatalf("ClientCount = %d, want 1", got)
	}
	hub.Unregister(c)
	if got := hub.ClientCount(ChannelAdmin); got != 0 {
		t.Fatalf("ClientCount after unregister = %d, want 0", got)
	}

	hub.Emit(ChannelAdmin, EventStatsUpdated, StatsUpdatedPayload{Type: "workshop"})
	select {
	case msg := <-c.send:
		t.Errorf("unregistered client received %+v", msg)
	default:
	}
}

func TestHubBroadcastDuringChurn(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			c := newTestClient(fmt.Sprintf("churn-%d", i), ChannelAdmin)
			hub.Register(c)
			hub.Unregister(c)
		}
	}()
	for i := 0; i < 200; i++ {
		hub.Emit(ChannelAdmin, EventStatsUpdated, StatsUpdatedPayload{Type: "workshop"})
	}
	<-done
}

func TestHubClientGauge(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	base := testutil.ToFloat64(metrics.WSClients.WithLabelValues("user"))

	c := newTestClient("g1", UserChannel("ext_9"))
	hub.Register(c)
	if got := testutil.ToFloat64(metrics.WSClients.WithLabelValues("user")); got != base+1 {
		t.Errorf("gauge after register = %v, want %v", got, base+1)
	}

	hub.Unregister(c)
	hub.Unregister(c) // repeated unregister must not drive the gauge negative
	if got := testutil.ToFloat64(metrics.WSClients.WithLabelValues("user")); got != base {
		t.Errorf("gauge after unregister = %v, want %v", got, base)
	}
}

func TestHubEmitFullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	c := &Client{ID: "slow", Channels: []string{ChannelAdmin}, send: make(chan WSMessage), logger: zap.NewNop()}
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		hub.Emit(ChannelAdmin, EventStatsUpdated, StatsUpdatedPayload{})
		close(done)
	}()
	select {
	case <-done:
	case msg := <-c.send:
		t.Fatalf("unexpected delivery to unbuffered client: %+v", msg)
	}
}
