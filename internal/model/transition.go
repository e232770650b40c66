package model

import (
	"time"

	"poolConsole/internal/pipeline"
)

// Transition sources.
const (
	SourcePush = "push"
	SourcePoll = "poll"
)

// StatusTransition is the journal record written whenever a channel
// observes a pool's status change.
type StatusTransition struct {
	PoolID     int64           `json:"pool_id"`
	From       pipeline.Status `json:"from"`
	To         pipeline.Status `json:"to"`
	Source     string          `json:"source"`
	TxHash     string          `json:"tx_hash,omitempty"`
	ObservedAt string          `json:"observed_at"`
}

// NewStatusTransition stamps a transition record with the current time.
func NewStatusTransition(poolID int64, from, to pipeline.Status, source, txHash string) StatusTransition {
	return StatusTransition{
		PoolID:     poolID,
		From:       from,
		To:         to,
		Source:     source,
		TxHash:     txHash,
		ObservedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
