package service

import (
	"context"
	"fmt"

	"github.com/openplay/roster-service/internal/engine"
	"github.com/openplay/roster-service/internal/kafka"
	"github.com/openplay/roster-service/internal/models"
	"github.com/openplay/roster-service/pkg/logger"
)

type RosterService interface {
	JoinGame(ctx context.Context, in JoinGameInput) (*JoinGameOutput, error)
	LeaveGame(ctx context.Context, in LeaveGameInput) (*LeaveGameOutput, error)
	ConfirmAttendance(ctx context.Context, gameID, profileID string) (*ConfirmAttendanceOutput, error)
	GetRoster(ctx context.Context, gameID string) (*models.RosterView, error)
}

type rosterService struct {
	eng  engine.AdmissionEngine
	prod kafka.Producer
	l    logger.Logger
}

func NewRosterService(eng engine.AdmissionEngine, prod kafka.Producer, l logger.Logger) RosterService {
	return &rosterService{
		eng:  eng,
		prod: prod,
		l:    l,
	}
}

func (s *rosterService) JoinGame(ctx context.Context, in JoinGameInput) (*JoinGameOutput, error) {
	entry, err := s.eng.Join(ctx, in.GameID, in.ProfileID)
	if err != nil {
		return nil, err
	}

	if s.prod != nil {
		view, vErr := s.eng.Roster(ctx, in.GameID)
		occupancy := 0
		if vErr == nil {
			occupancy = view.Occupancy
		}
		if err := s.prod.PublishRosterJoined(ctx, kafka.RosterJoinedEvent{
			GameID:        entry.GameID,
			ProfileID:     entry.ProfileID,
			Status:        string(entry.Status),
			QueuePosition: entry.QueuePosition,
			Occupancy:     occupancy,
			JoinedAt:      entry.JoinedAt,
		}); err != nil {
			// Delivery is decoupled from correctness of state.
			s.l.Errorf(ctx, "Failed to publish ROSTER_JOINED - game_id: %s, error: %v", in.GameID, err)
		}
	}

	return &JoinGameOutput{
		GameID:        entry.GameID,
		ProfileID:     entry.ProfileID,
		Status:        entry.Status,
		QueuePosition: entry.QueuePosition,
		JoinedAt:      entry.JoinedAt,
	}, nil
}

func (s *rosterService) LeaveGame(ctx context.Context, in LeaveGameInput) (*LeaveGameOutput, error) {
	// Releasing a confirmed slot is irreversible once the waitlist head is
	// promoted, so the caller must acknowledge it first. The check is
	// advisory: the engine remains the source of truth underneath.
	if !in.ReleaseConfirmedSlot {
		view, err := s.eng.Roster(ctx, in.GameID)
		if err != nil {
			return nil, err
		}
		for _, e := range view.Confirmed {
			if e.ProfileID == in.ProfileID {
				return nil, ErrConfirmedSlotNotReleased
			}
		}
	}

	res, err := s.eng.Leave(ctx, in.GameID, in.ProfileID)
	if err != nil {
		return nil, err
	}

	if s.prod != nil && res.Entry != nil {
		view, vErr := s.eng.Roster(ctx, in.GameID)
		occupancy := 0
		if vErr == nil {
			occupancy = view.Occupancy
		}
		if err := s.prod.PublishRosterLeft(ctx, kafka.RosterLeftEvent{
			GameID:         in.GameID,
			ProfileID:      in.ProfileID,
			PreviousStatus: string(res.PreviousStatus),
			Occupancy:      occupancy,
			LeftAt:         *res.Entry.DroppedAt,
		}); err != nil {
			s.l.Errorf(ctx, "Failed to publish ROSTER_LEFT - game_id: %s, error: %v", in.GameID, err)
		}

		if res.Promoted != nil {
			if err := s.prod.PublishRosterPromoted(ctx, kafka.RosterPromotedEvent{
				GameID:     in.GameID,
				ProfileID:  res.Promoted.ProfileID,
				PromotedAt: res.Promoted.UpdatedAt,
			}); err != nil {
				s.l.Errorf(ctx, "Failed to publish ROSTER_PROMOTED - game_id: %s, error: %v", in.GameID, err)
			}
		}
	}

	return &LeaveGameOutput{
		GameID:         in.GameID,
		ProfileID:      in.ProfileID,
		PreviousStatus: res.PreviousStatus,
	}, nil
}

func (s *rosterService) ConfirmAttendance(ctx context.Context, gameID, profileID string) (*ConfirmAttendanceOutput, error) {
	entry, err := s.eng.ConfirmAttendance(ctx, gameID, profileID)
	if err != nil {
		return nil, err
	}
	if entry.ConfirmedAt == nil {
		return nil, fmt.Errorf("confirmed entry missing confirmation time")
	}

	if s.prod != nil {
		if err := s.prod.PublishAttendanceConfirmed(ctx, kafka.AttendanceConfirmedEvent{
			GameID:      gameID,
			ProfileID:   profileID,
			ConfirmedAt: *entry.ConfirmedAt,
		}); err != nil {
			s.l.Errorf(ctx, "Failed to publish ATTENDANCE_CONFIRMED - game_id: %s, error: %v", gameID, err)
		}
	}

	return &ConfirmAttendanceOutput{
		GameID:      gameID,
		ProfileID:   profileID,
		ConfirmedAt: *entry.ConfirmedAt,
	}, nil
}

func (s *rosterService) GetRoster(ctx context.Context, gameID string) (*models.RosterView, error) {
	return s.eng.Roster(ctx, gameID)
}
