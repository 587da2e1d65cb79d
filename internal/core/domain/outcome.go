package domain

// TerminalState is the final outcome of one transaction request.
type TerminalState string

const (
	StateCommitted         TerminalState = "COMMITTED"
	StateAuthFailed        TerminalState = "AUTH_FAILED"
	StateAccountNotFound   TerminalState = "ACCOUNT_NOT_FOUND"
	StateAccountInactive   TerminalState = "ACCOUNT_INACTIVE"
	StateRejectedInput     TerminalState = "REJECTED_INPUT"
	StateInsufficientFunds TerminalState = "INSUFFICIENT_FUNDS"
	StateStorageError      TerminalState = "STORAGE_ERROR"
)

// AuthOutcome is the identity gate's answer for a reachable, well-formed call.
type AuthOutcome string

const (
	AuthOutcomeAuthenticated AuthOutcome = "AUTHENTICATED"
	AuthOutcomeRejected      AuthOutcome = "REJECTED"
)
