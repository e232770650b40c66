package pipeline

// Status is the coarse, backend-reported lifecycle stage of a pool deployment.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusDeployingPool   Status = "DEPLOYING_POOL"
	StatusPoolCreated     Status = "POOL_CREATED"
	StatusConfiguringPool Status = "CONFIGURING_POOL"
	StatusPoolConfigured  Status = "POOL_CONFIGURED"
	StatusDeployingLoans  Status = "DEPLOYING_LOANS"
	StatusDeployed        Status = "DEPLOYED"
	StatusRejected        Status = "REJECTED"
	StatusFailed          Status = "FAILED"
)

// Terminal reports whether the status ends the pipeline. FAILED is not
// terminal: a successful step retry moves the pool back into the
// corresponding DEPLOYING_* state.
func (s Status) Terminal() bool {
	return s == StatusDeployed || s == StatusRejected
}

// Known reports whether the status is one the pipeline defines. Unknown
// statuses still flow through the system unmodified.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusDeployingPool, StatusPoolCreated,
		StatusConfiguringPool, StatusPoolConfigured, StatusDeployingLoans,
		StatusDeployed, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// Category classifies a progress descriptor for display purposes.
type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
	CategoryDefault Category = "default"
)

// Progress describes how far along the pipeline a status sits.
type Progress struct {
	Percent  int      `json:"percent"`
	Message  string   `json:"message"`
	Category Category `json:"category"`
}

// ProgressFor maps a status to its progress descriptor. The mapping is
// total: an unrecognized status passes through its raw string with zero
// percent and the default category.
func ProgressFor(s Status) Progress {
	switch s {
	case StatusPending:
		return Progress{Percent: 0, Message: "Awaiting approval", Category: CategoryWarning}
	case StatusDeployingPool:
		return Progress{Percent: 20, Message: "Deploying pool", Category: CategoryInfo}
	case StatusPoolCreated:
		return Progress{Percent: 40, Message: "Pool created", Category: CategoryInfo}
	case StatusConfiguringPool:
		return Progress{Percent: 60, Message: "Configuring pool", Category: CategoryInfo}
	case StatusPoolConfigured:
		return Progress{Percent: 80, Message: "Pool configured", Category: CategoryInfo}
	case StatusDeployingLoans:
		return Progress{Percent: 90, Message: "Deploying loans", Category: CategoryInfo}
	case StatusDeployed:
		return Progress{Percent: 100, Message: "Deployed", Category: CategorySuccess}
	case StatusFailed:
		return Progress{Percent: 0, Message: "Deployment failed", Category: CategoryError}
	case StatusRejected:
		return Progress{Percent: 0, Message: "Rejected", Category: CategoryError}
	default:
		return Progress{Percent: 0, Message: string(s), Category: CategoryDefault}
	}
}
