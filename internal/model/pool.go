package model

import (
	"poolConsole/internal/pipeline"
)

// Pool is a loan pool undergoing deployment, as returned by the backend.
// The three transaction-id fields are optional evidence that the
// corresponding step completed; once set they are never cleared and they
// appear in pipeline order.
type Pool struct {
	ID     int64           `json:"id"`
	Status pipeline.Status `json:"status"`

	PoolCreationTxID  string `json:"poolCreationTxId,omitempty"`
	PoolConfigTxID    string `json:"poolConfigTxId,omitempty"`
	LoansCreationTxID string `json:"loansCreationTxId,omitempty"`

	// Display data, immutable for the lifetime of the record.
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Principal    string `json:"principal,omitempty"`
	InterestRate string `json:"interestRate,omitempty"`
	TermMonths   int    `json:"termMonths,omitempty"`
}

// TxIDFor returns the evidence transaction id recorded for a step, or
// the empty string when the step has not completed.
func (p Pool) TxIDFor(step pipeline.Step) string {
	switch step {
	case pipeline.StepPoolCreation:
		return p.PoolCreationTxID
	case pipeline.StepPoolConfig:
		return p.PoolConfigTxID
	case pipeline.StepLoanDeployment:
		return p.LoansCreationTxID
	default:
		return ""
	}
}

// DeploymentStep is the derived per-step view. It is computed fresh from
// a Pool on every use and never persisted.
type DeploymentStep struct {
	Step  pipeline.Step      `json:"step"`
	Title string             `json:"title"`
	State pipeline.StepState `json:"state"`
	TxID  string             `json:"txId,omitempty"`
}

// DeploymentSteps derives the three-step view for the pool. For a FAILED
// pool only the first step without evidence renders failed; steps after
// it stay pending, since the pipeline never reached them.
func (p Pool) DeploymentSteps() []DeploymentStep {
	specs := pipeline.StepSequence()
	steps := make([]DeploymentStep, 0, len(specs))
	failedSeen := false
	for _, spec := range specs {
		txID := p.TxIDFor(spec.Step)
		state := pipeline.DeriveStepState(txID, p.Status, spec.InProgress, spec.Success)
		if state == pipeline.StepFailed {
			if failedSeen {
				state = pipeline.StepPending
			}
			failedSeen = true
		}
		steps = append(steps, DeploymentStep{
			Step:  spec.Step,
			Title: spec.Title,
			State: state,
			TxID:  txID,
		})
	}
	return steps
}

// EligibleRetryStep returns the earliest step lacking completion
// evidence. Retry is only meaningful while the pool is FAILED; callers
// enforce that separately.
func (p Pool) EligibleRetryStep() (pipeline.Step, bool) {
	for _, spec := range pipeline.StepSequence() {
		if p.TxIDFor(spec.Step) == "" {
			return spec.Step, true
		}
	}
	return "", false
}
