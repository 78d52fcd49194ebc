// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package game

import "errors"

// Sentinel errors for expected engine outcomes. Callers distinguish these
// with errors.Is; anything else is a store or data failure.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyClaimed is returned when a spawn was caught by someone else.
	ErrAlreadyClaimed = errors.New("spawn already claimed")

	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")

	// ErrExpired is returned when a spawn, trade, or battle deadline passed.
	ErrExpired = errors.New("expired")

	// ErrOnCooldown is returned when a per-user action is rate limited.
	ErrOnCooldown = errors.New("on cooldown")

	// ErrContended is returned when a lock or conditional update lost the
	// race more times than the retry budget allows. The caller may retry.
	ErrContended = errors.New("contended, try again")

	// ErrStaleOffer is returned when a trade offer references a creature
	// its offeror no longer owns.
	ErrStaleOffer = errors.New("stale trade offer")

	// ErrRevisionMismatch is returned by conditional updates when the
	// stored revision no longer matches the expected one.
	ErrRevisionMismatch = errors.New("revision mismatch")

	// ErrInvalidTransition is returned when a status change violates the
	// record's state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInsufficientFunds is returned when a coin debit would take a
	// balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
