package audithook

// Action constants for audit events.
const (
	// Stream actions
	ActionStreamCreated   = "stream.created"
	ActionStreamClaimed   = "stream.claimed"
	ActionStreamCompleted = "stream.completed"
	ActionStreamCancelled = "stream.cancelled"
	ActionStreamPaused    = "stream.paused"
	ActionStreamResumed   = "stream.resumed"

	// Access actions
	ActionRoleGranted      = "role.granted"
	ActionRoleRevoked      = "role.revoked"
	ActionAdminTransferred = "admin.transferred"

	// Contract actions
	ActionContractPaused   = "contract.paused"
	ActionContractUnpaused = "contract.unpaused"
	ActionFeeRateChanged   = "fee_rate.changed"
)

// Resource constants for audit events.
const (
	ResourceStream   = "stream"
	ResourceRole     = "role"
	ResourceContract = "contract"
)

// Category constants for audit events.
const (
	CategoryPayment    = "payment"
	CategoryAccess     = "access"
	CategoryGovernance = "governance"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
