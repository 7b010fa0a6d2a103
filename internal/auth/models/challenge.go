package models

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Challenge is a one-time login message bound to an address. Signing its
// Message with the address's key proves control of that address.
type Challenge struct {
	ID        uuid.UUID      `json:"id"`
	Address   common.Address `json:"address"`
	Message   string         `json:"message"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func NewChallenge(address common.Address, now time.Time, ttl time.Duration) *Challenge {
	id := uuid.New()
	return &Challenge{
		ID:      id,
		Address: address,
		Message: fmt.Sprintf("ChronoStamp login\naddress: %s\nchallenge: %s\nissued: %s",
			address.Hex(), id, now.UTC().Format(time.RFC3339)),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Session is an issued access token.
type Session struct {
	AccessToken string
	Address     common.Address
	ExpiresAt   time.Time
}
