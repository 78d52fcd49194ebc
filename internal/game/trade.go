// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package game

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// TradeStatus identifies the escrow state of a trade.
type TradeStatus string

// Trade statuses. CONFIRMED, CANCELLED, and EXPIRED are terminal.
// Creatures change owner only on the transition into CONFIRMED, and that
// transition is atomic across both offer sets.
const (
	TradeProposed           TradeStatus = "proposed"
	TradePartiallyConfirmed TradeStatus = "partially_confirmed"
	TradeConfirmed          TradeStatus = "confirmed"
	TradeCancelled          TradeStatus = "cancelled"
	TradeExpired            TradeStatus = "expired"
)

// String returns the string representation of the trade status.
func (s TradeStatus) String() string {
	return string(s)
}

// Terminal reports whether the status admits no further transitions.
func (s TradeStatus) Terminal() bool {
	switch s {
	case TradeConfirmed, TradeCancelled, TradeExpired:
		return true
	}
	return false
}

// Trade is a two-party creature exchange with an explicit confirmation
// handshake.
type Trade struct {
	ID ulid.ULID

	ProposerID     ulid.ULID
	CounterpartyID ulid.ULID

	ProposerOffer     []ulid.ULID
	CounterpartyOffer []ulid.ULID

	ProposerConfirmed     bool
	CounterpartyConfirmed bool

	Status    TradeStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsParty reports whether the user is one of the trade's two parties.
func (t *Trade) IsParty(userID ulid.ULID) bool {
	return t.ProposerID == userID || t.CounterpartyID == userID
}

// Confirmed reports whether the given party has already confirmed.
func (t *Trade) Confirmed(userID ulid.ULID) bool {
	switch userID {
	case t.ProposerID:
		return t.ProposerConfirmed
	case t.CounterpartyID:
		return t.CounterpartyConfirmed
	}
	return false
}

// BothConfirmed reports whether both parties have confirmed.
func (t *Trade) BothConfirmed() bool {
	return t.ProposerConfirmed && t.CounterpartyConfirmed
}

// ExpiredAt reports whether the trade's deadline has passed at the given
// instant. Like spawns, expiry is applied lazily on next access.
func (t *Trade) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Validate checks trade invariants.
func (t *Trade) Validate() error {
	if t.ID.IsZero() {
		return &ValidationError{Field: "id", Message: "cannot be zero"}
	}
	if t.ProposerID.IsZero() || t.CounterpartyID.IsZero() {
		return &ValidationError{Field: "parties", Message: "both parties required"}
	}
	if t.ProposerID == t.CounterpartyID {
		return &ValidationError{Field: "parties", Message: "cannot trade with yourself"}
	}
	if len(t.ProposerOffer) == 0 {
		return &ValidationError{Field: "proposer_offer", Message: "cannot be empty"}
	}
	return nil
}
