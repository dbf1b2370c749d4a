package storage

// Status -
type Status string

// defined statuses
const (
	StatusPending  Status = "pending"
	StatusDeployed Status = "deployed"
	StatusReused   Status = "reused"
	StatusFailed   Status = "failed"
)

// LiveStatuses - statuses of rows pointing at a contract on chain
var LiveStatuses = []Status{StatusDeployed, StatusReused}

// IsLive - the row points at a contract on chain: deployed by its run or reused from an earlier one
func (s Status) IsLive() bool {
	return s == StatusDeployed || s == StatusReused
}
