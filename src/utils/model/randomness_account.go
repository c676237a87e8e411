package model

import (
	"database/sql"
	"time"
)

const (
	TableRandomnessAccount = "randomness_accounts"
)

type RandomnessAccountStatus string

const (
	RandomnessAccountStatusAvailable RandomnessAccountStatus = "Available"
	RandomnessAccountStatusInUse     RandomnessAccountStatus = "InUse"
	RandomnessAccountStatusCooldown  RandomnessAccountStatus = "Cooldown"
	RandomnessAccountStatusInvalid   RandomnessAccountStatus = "Invalid"
)

// External verifiable randomness account
type RandomnessAccount struct {
	Address string `gorm:"primaryKey"`

	Status RandomnessAccountStatus

	// Match that holds the account, set only when InUse
	MatchAddress sql.NullString

	CreatedAt     time.Time
	LastUsedAt    sql.NullTime
	CooldownUntil sql.NullTime
	InvalidatedAt sql.NullTime
}

func (RandomnessAccount) TableName() string {
	return TableRandomnessAccount
}
