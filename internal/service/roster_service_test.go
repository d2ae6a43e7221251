package service_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/openplay/roster-service/internal/engine"
	"github.com/openplay/roster-service/internal/kafka"
	"github.com/openplay/roster-service/internal/models"
	"github.com/openplay/roster-service/internal/repository/memory"
	"github.com/openplay/roster-service/internal/service"
	"github.com/openplay/roster-service/pkg/logger"
)

type noopNotifier struct{}

func (noopNotifier) RosterChanged(ctx context.Context, ev models.RosterChangeEvent) error {
	return nil
}
func (noopNotifier) ProfileChanged(ctx context.Context, ev models.ProfileChangeEvent) error {
	return nil
}

// captureProducer records the integration events handed to the broker.
type captureProducer struct {
	joined    []kafka.RosterJoinedEvent
	left      []kafka.RosterLeftEvent
	promoted  []kafka.RosterPromotedEvent
	confirmed []kafka.AttendanceConfirmedEvent
}

func (p *captureProducer) PublishRosterJoined(ctx context.Context, ev kafka.RosterJoinedEvent) error {
	p.joined = append(p.joined, ev)
	return nil
}
func (p *captureProducer) PublishRosterLeft(ctx context.Context, ev kafka.RosterLeftEvent) error {
	p.left = append(p.left, ev)
	return nil
}
func (p *captureProducer) PublishRosterPromoted(ctx context.Context, ev kafka.RosterPromotedEvent) error {
	p.promoted = append(p.promoted, ev)
	return nil
}
func (p *captureProducer) PublishAttendanceConfirmed(ctx context.Context, ev kafka.AttendanceConfirmedEvent) error {
	p.confirmed = append(p.confirmed, ev)
	return nil
}
func (p *captureProducer) Close() error { return nil }

func newTestService(t *testing.T, capacity int) (service.RosterService, *captureProducer) {
	t.Helper()
	store := memory.NewStore()
	store.PutGame(models.Game{
		ID:        "g1",
		Capacity:  capacity,
		StartTime: time.Now().Add(time.Hour),
		Status:    models.GameStatusScheduled,
	})
	l := logger.InitializeTestZapLogger()
	prod := &captureProducer{}
	return service.NewRosterService(engine.NewAdmissionEngine(store, noopNotifier{}, l), prod, l), prod
}

func TestJoinGamePublishesIntegrationEvent(t *testing.T) {
	svc, prod := newTestService(t, 1)
	ctx := context.Background()

	out, err := svc.JoinGame(ctx, service.JoinGameInput{GameID: "g1", ProfileID: "alice"})
	if err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}
	if out.Status != models.EntryStatusConfirmed {
		t.Errorf("status = %s, want confirmed", out.Status)
	}

	if len(prod.joined) != 1 {
		t.Fatalf("published %d ROSTER_JOINED events, want 1", len(prod.joined))
	}
	ev := prod.joined[0]
	if ev.GameID != "g1" || ev.ProfileID != "alice" || ev.Occupancy != 1 {
		t.Errorf("event = %+v", ev)
	}
}

func TestLeaveGameRequiresAckForConfirmedMember(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	if _, err := svc.JoinGame(ctx, service.JoinGameInput{GameID: "g1", ProfileID: "alice"}); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	_, err := svc.LeaveGame(ctx, service.LeaveGameInput{GameID: "g1", ProfileID: "alice"})
	if !stderrors.Is(err, service.ErrConfirmedSlotNotReleased) {
		t.Fatalf("got %v, want ErrConfirmedSlotNotReleased", err)
	}

	out, err := svc.LeaveGame(ctx, service.LeaveGameInput{
		GameID: "g1", ProfileID: "alice", ReleaseConfirmedSlot: true,
	})
	if err != nil {
		t.Fatalf("acked LeaveGame failed: %v", err)
	}
	if out.PreviousStatus != models.EntryStatusConfirmed {
		t.Errorf("previous status = %s, want confirmed", out.PreviousStatus)
	}
}

func TestLeaveGameWithoutAckIsFineForWaitlisted(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	for _, p := range []string{"alice", "bob"} {
		if _, err := svc.JoinGame(ctx, service.JoinGameInput{GameID: "g1", ProfileID: p}); err != nil {
			t.Fatalf("JoinGame(%s) failed: %v", p, err)
		}
	}

	out, err := svc.LeaveGame(ctx, service.LeaveGameInput{GameID: "g1", ProfileID: "bob"})
	if err != nil {
		t.Fatalf("waitlisted LeaveGame failed: %v", err)
	}
	if out.PreviousStatus != models.EntryStatusWaitlisted {
		t.Errorf("previous status = %s, want waitlisted", out.PreviousStatus)
	}
}

func TestLeaveGamePublishesPromotionEvent(t *testing.T) {
	svc, prod := newTestService(t, 1)
	ctx := context.Background()

	for _, p := range []string{"alice", "bob"} {
		if _, err := svc.JoinGame(ctx, service.JoinGameInput{GameID: "g1", ProfileID: p}); err != nil {
			t.Fatalf("JoinGame(%s) failed: %v", p, err)
		}
	}

	if _, err := svc.LeaveGame(ctx, service.LeaveGameInput{
		GameID: "g1", ProfileID: "alice", ReleaseConfirmedSlot: true,
	}); err != nil {
		t.Fatalf("LeaveGame failed: %v", err)
	}

	if len(prod.left) != 1 || prod.left[0].PreviousStatus != string(models.EntryStatusConfirmed) {
		t.Errorf("left events = %+v, want one confirmed leave", prod.left)
	}
	if len(prod.promoted) != 1 || prod.promoted[0].ProfileID != "bob" {
		t.Errorf("promoted events = %+v, want bob promoted", prod.promoted)
	}
}

func TestLeaveGameNoOpPublishesNothing(t *testing.T) {
	svc, prod := newTestService(t, 1)

	out, err := svc.LeaveGame(context.Background(), service.LeaveGameInput{
		GameID: "g1", ProfileID: "ghost",
	})
	if err != nil {
		t.Fatalf("LeaveGame failed: %v", err)
	}
	if out.PreviousStatus != models.EntryStatusDropped {
		t.Errorf("previous status = %s, want dropped", out.PreviousStatus)
	}
	if len(prod.left) != 0 {
		t.Errorf("published %d ROSTER_LEFT events for a no-op, want 0", len(prod.left))
	}
}

func TestConfirmAttendancePublishesEvent(t *testing.T) {
	svc, prod := newTestService(t, 1)
	ctx := context.Background()

	if _, err := svc.JoinGame(ctx, service.JoinGameInput{GameID: "g1", ProfileID: "alice"}); err != nil {
		t.Fatalf("JoinGame failed: %v", err)
	}

	out, err := svc.ConfirmAttendance(ctx, "g1", "alice")
	if err != nil {
		t.Fatalf("ConfirmAttendance failed: %v", err)
	}
	if out.ConfirmedAt.IsZero() {
		t.Error("ConfirmedAt not set")
	}
	if len(prod.confirmed) != 1 || prod.confirmed[0].ProfileID != "alice" {
		t.Errorf("confirmed events = %+v", prod.confirmed)
	}
}
