package indexer

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/program"

	"golang.org/x/exp/slices"
)

var (
	// Event refers to a match that isn't stored yet, it may arrive later
	ErrUnknownMatch = errors.New("unknown match")

	// Event doesn't fit the current match state, it is stored and ignored
	ErrIllegalTransition = errors.New("illegal transition")
)

func illegal(current *model.Match, kind model.EventKind) error {
	return fmt.Errorf("%w: %s in status %s", ErrIllegalTransition, kind, current.Status)
}

// Computes the match state after the event. Never modifies current.
func Transition(current *model.Match, event *program.Event, payload program.Payload, now time.Time) (next *model.Match, err error) {
	if payload == nil || payload.Kind() != event.Kind {
		return nil, fmt.Errorf("%w: payload doesn't match %s", ErrIllegalTransition, event.Kind)
	}

	if event.Kind == model.EventKindCreated {
		if current != nil {
			return nil, illegal(current, event.Kind)
		}
		return created(event, payload.(*program.CreatedPayload), now), nil
	}

	if current == nil {
		return nil, ErrUnknownMatch
	}

	if current.Status.IsTerminal() {
		return nil, illegal(current, event.Kind)
	}

	next = current.Clone()
	switch p := payload.(type) {
	case *program.JoinedPayload:
		if current.Status != model.MatchStatusWaiting {
			return nil, illegal(current, event.Kind)
		}
		next.Status = model.MatchStatusAwaitingRandomness
		next.JoinTx = sql.NullString{String: event.Signature, Valid: true}
		next.JoinedAt = sql.NullTime{Time: now, Valid: true}
		if !slices.Contains(next.Players, p.Player) {
			next.Players = append(next.Players, p.Player)
		}
		if p.Deadline != 0 {
			next.Deadline = p.Deadline
		}

	case *program.ResolvedPayload:
		// Single step resolution straight from Waiting is allowed
		next.Status = model.MatchStatusResolved
		next.WinnerSide = sql.NullInt16{Int16: int16(p.WinnerSide), Valid: true}
		next.Winner = sql.NullString{String: p.Winner, Valid: p.Winner != ""}
		next.PayoutAmount = sql.NullInt64{Int64: int64(p.PayoutLamports), Valid: true}
		next.PayoutTx = sql.NullString{String: event.Signature, Valid: true}
		next.ResolvedAt = sql.NullTime{Time: now, Valid: true}

	case *program.RefundedPayload:
		next.Status = model.MatchStatusRefunded
		next.RefundTx = sql.NullString{String: event.Signature, Valid: true}
		next.RefundedAt = sql.NullTime{Time: now, Valid: true}

	default:
		return nil, illegal(current, event.Kind)
	}

	return next, nil
}

func created(event *program.Event, p *program.CreatedPayload, now time.Time) *model.Match {
	return &model.Match{
		Address:       event.MatchAddress,
		Creator:       p.Creator,
		Players:       []string{p.Creator},
		Game:          p.Game,
		Mode:          p.Mode,
		StakeLamports: p.StakeLamports,
		IsPrivate:     p.IsPrivate,
		Status:        model.MatchStatusWaiting,
		Deadline:      p.Deadline,
		CreateTx:      sql.NullString{String: event.Signature, Valid: true},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
