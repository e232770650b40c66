package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolConsole/internal/model"
	"poolConsole/internal/pipeline"
)

// StepEvidence is the verification result for one recorded transaction
// id. Verifiable is false when the id is not a 32-byte hash; Found is
// false when the chain has no receipt for it yet.
type StepEvidence struct {
	Step          pipeline.Step `json:"step"`
	TxID          string        `json:"txId"`
	Verifiable    bool          `json:"verifiable"`
	Found         bool          `json:"found"`
	ReceiptStatus uint64        `json:"receiptStatus,omitempty"`
	BlockNumber   uint64        `json:"blockNumber,omitempty"`
}

// ParseTxHash interprets an opaque transaction id as a 32-byte hex
// hash. Backends are free to record ids in other schemes; those simply
// cannot be verified on chain.
func ParseTxHash(txID string) (common.Hash, bool) {
	raw, err := hexutil.Decode(txID)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(raw), true
}

// VerifyPool checks every recorded transaction id of the pool against
// the chain, in pipeline order. Steps without evidence are skipped, and
// a missing receipt is a result, not an error; only transport failures
// abort the check.
func (c *Client) VerifyPool(ctx context.Context, pool model.Pool) ([]StepEvidence, error) {
	var report []StepEvidence
	for _, spec := range pipeline.StepSequence() {
		txID := pool.TxIDFor(spec.Step)
		if txID == "" {
			continue
		}

		evidence := StepEvidence{Step: spec.Step, TxID: txID}
		hash, ok := ParseTxHash(txID)
		if !ok {
			report = append(report, evidence)
			continue
		}
		evidence.Verifiable = true

		receipt, err := c.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				report = append(report, evidence)
				continue
			}
			return nil, fmt.Errorf("receipt for %s: %w", txID, err)
		}

		evidence.Found = true
		evidence.ReceiptStatus = receipt.Status
		if receipt.BlockNumber != nil {
			evidence.BlockNumber = receipt.BlockNumber.Uint64()
		}
		report = append(report, evidence)
	}
	return report, nil
}
