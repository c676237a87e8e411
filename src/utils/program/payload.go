package program

import (
	"fmt"

	"github.com/arena-labs/syncer/src/utils/model"
)

// Decoded event fields, specific to the event kind
type Payload interface {
	Kind() model.EventKind
	encode(w *writer) error
}

type CreatedPayload struct {
	Creator       string `json:"creator"`
	StakeLamports uint64 `json:"stakeLamports"`
	Deadline      int64  `json:"deadline"`
	Game          string `json:"game"`
	Mode          string `json:"mode"`
	IsPrivate     bool   `json:"isPrivate"`
}

func (self *CreatedPayload) Kind() model.EventKind {
	return model.EventKindCreated
}

func (self *CreatedPayload) encode(w *writer) error {
	err := w.pubkey(self.Creator)
	if err != nil {
		return err
	}
	w.u64(self.StakeLamports)
	w.i64(self.Deadline)
	w.string(self.Game)
	w.string(self.Mode)
	w.bool(self.IsPrivate)
	return nil
}

type JoinedPayload struct {
	Player string `json:"player"`

	// New deadline, 0 keeps the previous one
	Deadline int64 `json:"deadline"`

	// Randomness account chosen by the joining transaction, empty if none
	RandomnessAccount string `json:"randomnessAccount,omitempty"`
}

func (self *JoinedPayload) Kind() model.EventKind {
	return model.EventKindJoined
}

func (self *JoinedPayload) encode(w *writer) error {
	err := w.pubkey(self.Player)
	if err != nil {
		return err
	}
	w.i64(self.Deadline)
	return w.pubkey(self.RandomnessAccount)
}

type ResolvedPayload struct {
	WinnerSide     uint8  `json:"winnerSide"`
	Winner         string `json:"winner"`
	PayoutLamports uint64 `json:"payoutLamports"`
}

func (self *ResolvedPayload) Kind() model.EventKind {
	return model.EventKindResolved
}

func (self *ResolvedPayload) encode(w *writer) error {
	w.u8(self.WinnerSide)
	err := w.pubkey(self.Winner)
	if err != nil {
		return err
	}
	w.u64(self.PayoutLamports)
	return nil
}

type RefundedPayload struct {
	AmountLamports uint64 `json:"amountLamports"`
}

func (self *RefundedPayload) Kind() model.EventKind {
	return model.EventKindRefunded
}

func (self *RefundedPayload) encode(w *writer) error {
	w.u64(self.AmountLamports)
	return nil
}

// Interprets event data of the given kind
func Decode(kind model.EventKind, data []byte) (out Payload, err error) {
	r := newReader(data)
	switch kind {
	case model.EventKindCreated:
		out = &CreatedPayload{
			Creator:       r.pubkey(),
			StakeLamports: r.u64(),
			Deadline:      r.i64(),
			Game:          r.string(),
			Mode:          r.string(),
			IsPrivate:     r.bool(),
		}
	case model.EventKindJoined:
		out = &JoinedPayload{
			Player:            r.pubkey(),
			Deadline:          r.i64(),
			RandomnessAccount: r.optionalPubkey(),
		}
	case model.EventKindResolved:
		out = &ResolvedPayload{
			WinnerSide:     r.u8(),
			Winner:         r.pubkey(),
			PayoutLamports: r.u64(),
		}
	case model.EventKindRefunded:
		out = &RefundedPayload{
			AmountLamports: r.u64(),
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
	}

	if r.err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, r.err)
	}
	return
}
