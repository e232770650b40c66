package pipeline

import (
	"fmt"
	"strings"
)

// Step identifies one of the three ordered deployment sub-phases.
type Step string

const (
	StepPoolCreation   Step = "pool_creation"
	StepPoolConfig     Step = "pool_config"
	StepLoanDeployment Step = "loan_deployment"
)

// StepState is the derived display state of a single step.
type StepState string

const (
	StepPending    StepState = "pending"
	StepInProgress StepState = "in-progress"
	StepSuccess    StepState = "success"
	StepFailed     StepState = "failed"
)

// StepSpec binds a step to the statuses that mark it running and done.
type StepSpec struct {
	Step       Step
	Title      string
	InProgress Status
	Success    Status
}

// StepSequence returns the three step descriptors in pipeline order.
func StepSequence() []StepSpec {
	return []StepSpec{
		{Step: StepPoolCreation, Title: "Pool Creation", InProgress: StatusDeployingPool, Success: StatusPoolCreated},
		{Step: StepPoolConfig, Title: "Pool Configuration", InProgress: StatusConfiguringPool, Success: StatusPoolConfigured},
		{Step: StepLoanDeployment, Title: "Loan Deployment", InProgress: StatusDeployingLoans, Success: StatusDeployed},
	}
}

// ParseStep converts an operator-supplied step name into a Step.
func ParseStep(input string) (Step, error) {
	switch Step(strings.ToLower(strings.TrimSpace(input))) {
	case StepPoolCreation:
		return StepPoolCreation, nil
	case StepPoolConfig:
		return StepPoolConfig, nil
	case StepLoanDeployment:
		return StepLoanDeployment, nil
	default:
		return "", fmt.Errorf("unknown step: %s", input)
	}
}

// DeriveStepState computes the display state of one step from its
// transaction-id evidence and the pool's current status. A set txID is
// authoritative: the step finished even if the pool later failed
// downstream, and it is never reported as merely in progress.
func DeriveStepState(txID string, current, inProgress, success Status) StepState {
	if current == StatusFailed {
		if txID != "" {
			return StepSuccess
		}
		return StepFailed
	}
	if txID != "" {
		return StepSuccess
	}
	if current == inProgress {
		return StepInProgress
	}
	if current == success {
		return StepSuccess
	}
	return StepPending
}
