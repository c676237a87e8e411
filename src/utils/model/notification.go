package model

import (
	"encoding/json"
	"time"
)

// Broadcast after a match changed its state
type MatchNotification struct {
	Type      EventKind  `json:"type"`
	Match     *MatchView `json:"match"`
	Timestamp int64      `json:"timestamp"`
}

func (self *MatchNotification) MarshalBinary() (data []byte, err error) {
	return json.Marshal(self)
}

// Public view of a match
type MatchView struct {
	Address           string   `json:"address"`
	Creator           string   `json:"creator"`
	Players           []string `json:"players"`
	Game              string   `json:"game"`
	Mode              string   `json:"mode"`
	StakeLamports     uint64   `json:"stakeLamports"`
	IsPrivate         bool     `json:"isPrivate"`
	Status            string   `json:"status"`
	Deadline          int64    `json:"deadline"`
	WinnerSide        *int16   `json:"winnerSide,omitempty"`
	Winner            string   `json:"winner,omitempty"`
	RandomnessAccount string   `json:"randomnessAccount,omitempty"`
	CreateTx          string   `json:"createTx,omitempty"`
	JoinTx            string   `json:"joinTx,omitempty"`
	PayoutTx          string   `json:"payoutTx,omitempty"`
	RefundTx          string   `json:"refundTx,omitempty"`
}

func NewMatchNotification(kind EventKind, match *Match) *MatchNotification {
	view := &MatchView{
		Address:           match.Address,
		Creator:           match.Creator,
		Players:           append([]string(nil), match.Players...),
		Game:              match.Game,
		Mode:              match.Mode,
		StakeLamports:     match.StakeLamports,
		IsPrivate:         match.IsPrivate,
		Status:            string(match.Status),
		Deadline:          match.Deadline,
		Winner:            match.Winner.String,
		RandomnessAccount: match.RandomnessAccount.String,
		CreateTx:          match.CreateTx.String,
		JoinTx:            match.JoinTx.String,
		PayoutTx:          match.PayoutTx.String,
		RefundTx:          match.RefundTx.String,
	}
	if match.WinnerSide.Valid {
		side := match.WinnerSide.Int16
		view.WinnerSide = &side
	}
	return &MatchNotification{
		Type:      kind,
		Match:     view,
		Timestamp: time.Now().UnixMilli(),
	}
}
