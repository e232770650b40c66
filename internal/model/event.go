package model

import (
	"poolConsole/internal/pipeline"
)

// DeploymentEvent is a normalized webhook notification about one pool.
// Kind carries the wire type of current-format events ("legacy" for the
// old producer) and selects the operator notification, if any.
type DeploymentEvent struct {
	PoolID int64           `json:"poolId"`
	Status pipeline.Status `json:"status"`
	Kind   string          `json:"kind,omitempty"`
	Error  string          `json:"error,omitempty"`
	TxHash string          `json:"txHash,omitempty"`
}
