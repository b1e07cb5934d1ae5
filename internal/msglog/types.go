// Package msglog provides the durable append-only record of inbound
// messages and of which ones have been claimed.
//
// Both logs are line-delimited JSON. Multiple hook processes append and
// read concurrently; readers tolerate a partially written last line by
// skipping malformed lines. All claim writes go through the claim
// coordinator's cross-process lock, so the claim log never sees two
// records for one sequence id.
package msglog

import (
	"time"

	"github.com/smykla-skalski/telegate/internal/telegram"
)

// Envelope is one inbound message as durably logged. Immutable once
// appended.
type Envelope struct {
	// SequenceID is the source-assigned, unique, increasing update id.
	SequenceID int64 `json:"sequence_id"`

	// Update is the raw inbound message.
	Update telegram.Update `json:"update"`

	// ReceivedAt is when this process first observed the message.
	ReceivedAt time.Time `json:"received_at"`
}

// Claim records that one interaction took ownership of one envelope.
// Created exactly once per sequence id.
type Claim struct {
	// SequenceID is the claimed envelope's sequence id.
	SequenceID int64 `json:"sequence_id"`

	// ClaimedBy is the owning interaction id.
	ClaimedBy string `json:"claimed_by"`

	// ClaimedAt is when the claim was written.
	ClaimedAt time.Time `json:"claimed_at"`
}

// Predicate selects envelopes relevant to one interaction.
type Predicate func(*Envelope) bool
