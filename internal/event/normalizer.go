// Package event normalizes raw deployment-stream payloads into the
// single event shape the rest of the console consumes. The server has
// shipped two wire formats over time; both are accepted here so callers
// never see the difference.
package event

import (
	"encoding/json"

	"go.uber.org/zap"

	"poolConsole/internal/model"
	"poolConsole/internal/pipeline"
)

// Event kinds in the current wire format.
const (
	KindDeploymentUpdate   = "deployment_update"
	KindDeploymentComplete = "deployment_complete"
	KindDeploymentFailed   = "deployment_failed"
	KindPoolConfigured     = "pool_configured"

	// KindLegacy marks events recovered from the old tx-id keyed format.
	KindLegacy = "legacy"
)

// PoolIndex resolves a transaction id back to the pool that produced
// it. Legacy payloads carry no pool id, only the tx id.
type PoolIndex interface {
	FindByTxID(txID string) (model.Pool, bool)
}

// Normalizer converts raw stream payloads to deployment events.
type Normalizer struct {
	pools  PoolIndex
	logger *zap.Logger
}

func NewNormalizer(pools PoolIndex, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{pools: pools, logger: logger}
}

// envelope is the union of every field either wire format may carry.
type envelope struct {
	Type          string              `json:"type"`
	PoolID        *int64              `json:"poolId"`
	Status        string              `json:"status"`
	Error         string              `json:"error"`
	TxHash        string              `json:"txHash"`
	TransactionID string              `json:"transactionId"`
	Notification  *legacyNotification `json:"notification"`
}

// legacyNotification is the nested shape some older servers emit.
type legacyNotification struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	TxHash string `json:"txHash"`
	Error  string `json:"error"`
}

func knownKind(t string) bool {
	switch t {
	case KindDeploymentUpdate, KindDeploymentComplete, KindDeploymentFailed, KindPoolConfigured:
		return true
	}
	return false
}

// Normalize parses one raw payload. It returns false when the payload
// is malformed, incomplete, or names a transaction no tracked pool
// produced; such payloads are dropped without disturbing the caller.
func (n *Normalizer) Normalize(raw []byte) (model.DeploymentEvent, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		n.logger.Debug("dropping malformed event payload", zap.Error(err))
		return model.DeploymentEvent{}, false
	}

	if knownKind(env.Type) && env.PoolID != nil && env.Status != "" {
		return model.DeploymentEvent{
			PoolID: *env.PoolID,
			Status: pipeline.Status(env.Status),
			Kind:   env.Type,
			Error:  env.Error,
			TxHash: env.TxHash,
		}, true
	}

	return n.normalizeLegacy(env)
}

// normalizeLegacy recovers events from the old format, which keys on a
// transaction id instead of a pool id. The id is resolved through the
// pool table; events for transactions we never recorded are dropped.
func (n *Normalizer) normalizeLegacy(env envelope) (model.DeploymentEvent, bool) {
	txID := env.TransactionID
	status := env.Status
	errMsg := env.Error
	txHash := env.TxHash
	if env.Notification != nil {
		txID = env.Notification.ID
		status = env.Notification.State
		errMsg = env.Notification.Error
		txHash = env.Notification.TxHash
	}

	if txID == "" || status == "" {
		n.logger.Debug("dropping incomplete event payload",
			zap.String("type", env.Type))
		return model.DeploymentEvent{}, false
	}

	pool, ok := n.pools.FindByTxID(txID)
	if !ok {
		n.logger.Debug("dropping event for unknown transaction",
			zap.String("tx_id", txID))
		return model.DeploymentEvent{}, false
	}

	return model.DeploymentEvent{
		PoolID: pool.ID,
		Status: pipeline.Status(status),
		Kind:   KindLegacy,
		Error:  errMsg,
		TxHash: txHash,
	}, true
}
