package drip

import (
	"errors"
	"fmt"
)

// Kind classifies an error for programmatic branching.
type Kind uint8

// Error kinds.
const (
	KindInternal Kind = iota
	KindAuthorization
	KindValidation
	KindStateConflict
	KindResourceExhausted
	KindExternalTransfer
	KindNotFound
)

var kindNames = [...]string{
	KindInternal:          "internal",
	KindAuthorization:     "authorization",
	KindValidation:        "validation",
	KindStateConflict:     "state_conflict",
	KindResourceExhausted: "resource_exhausted",
	KindExternalTransfer:  "external_transfer_failure",
	KindNotFound:          "not_found",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is a classified Drip error with a stable numeric code.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    int
	Message string
}

func (e *Error) Error() string {
	return "drip: " + e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(kind Kind, code int, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Sentinel errors for common failure scenarios.
var (
	// Authorization errors
	ErrNoCaller           = newError(KindAuthorization, 100, "caller identity required")
	ErrNotAdmin           = newError(KindAuthorization, 101, "caller is not an admin")
	ErrNotRecipient       = newError(KindAuthorization, 102, "caller is not the stream recipient")
	ErrNotSender          = newError(KindAuthorization, 103, "caller is not the stream sender")
	ErrMissingCapability  = newError(KindAuthorization, 104, "caller lacks required capability")
	ErrNotTransferTarget  = newError(KindAuthorization, 105, "caller is not the pending admin transfer target")
	ErrInvalidCredentials = newError(KindAuthorization, 106, "invalid credentials")

	// Validation errors
	ErrAmountTooSmall      = newError(KindValidation, 200, "amount below minimum")
	ErrAmountTooLarge      = newError(KindValidation, 201, "amount above maximum")
	ErrInvalidDuration     = newError(KindValidation, 202, "duration out of bounds")
	ErrSelfStream          = newError(KindValidation, 203, "recipient must differ from sender")
	ErrInvalidRecipient    = newError(KindValidation, 204, "invalid recipient")
	ErrStartDelayTooLong   = newError(KindValidation, 205, "start delay above maximum")
	ErrMetadataTooLong     = newError(KindValidation, 206, "metadata too long")
	ErrZeroRate            = newError(KindValidation, 207, "amount per block would be zero")
	ErrInvalidFeeRate      = newError(KindValidation, 208, "fee rate above maximum")
	ErrInvalidRole         = newError(KindValidation, 209, "invalid role")
	ErrSelfTransfer        = newError(KindValidation, 210, "admin transfer target must differ from caller")
	ErrInvalidIdentity     = newError(KindValidation, 211, "invalid identity")
	ErrInvalidInput        = newError(KindValidation, 212, "invalid input")
	ErrHeightBeforeCurrent = newError(KindValidation, 213, "block height cannot move backwards")

	// State errors
	ErrStreamNotActive      = newError(KindStateConflict, 300, "stream is not active")
	ErrStreamNotPaused      = newError(KindStateConflict, 301, "stream is not paused")
	ErrStreamFinalized      = newError(KindStateConflict, 302, "stream is cancelled or completed")
	ErrNothingToClaim       = newError(KindStateConflict, 303, "nothing to claim")
	ErrRoleAlreadyHeld      = newError(KindStateConflict, 304, "role already held")
	ErrRoleNotHeld          = newError(KindStateConflict, 305, "role not held")
	ErrSelfDemotion         = newError(KindStateConflict, 306, "admin cannot revoke own admin role")
	ErrNoPendingTransfer    = newError(KindStateConflict, 307, "no pending admin transfer")
	ErrTransferDelay        = newError(KindStateConflict, 308, "admin transfer delay has not elapsed")
	ErrContractPaused       = newError(KindStateConflict, 309, "contract is paused")
	ErrContractNotPaused    = newError(KindStateConflict, 310, "contract is not paused")
	ErrInvalidTransition    = newError(KindStateConflict, 311, "invalid emergency state transition")
	ErrTreasuryLocked       = newError(KindStateConflict, 312, "treasury is locked")
	ErrTreasuryNotLocked    = newError(KindStateConflict, 313, "treasury is not locked")
	ErrInsufficientTreasury = newError(KindStateConflict, 314, "insufficient treasury balance")

	// Resource errors
	ErrTooManyStreams  = newError(KindResourceExhausted, 400, "active stream limit reached")
	ErrIndexFull       = newError(KindResourceExhausted, 401, "stream index is full")
	ErrAmountOverflow  = newError(KindResourceExhausted, 402, "amount overflow")
	ErrIDSpaceExceeded = newError(KindResourceExhausted, 403, "stream id space exhausted")

	// Transfer errors
	ErrTransferFailed = newError(KindExternalTransfer, 500, "asset transfer failed")

	// Not found errors
	ErrNotFound       = newError(KindNotFound, 600, "not found")
	ErrStreamNotFound = newError(KindNotFound, 601, "stream not found")

	// Store errors
	ErrStoreFailure     = newError(KindInternal, 700, "store failure")
	ErrClockUnavailable = newError(KindInternal, 701, "clock unavailable")
	ErrNotStarted       = newError(KindInternal, 702, "engine not started")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("drip: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap classifies field-level failures as ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "drip: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("drip: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Err returns nil when empty, the single error when there is one, and the
// MultiError otherwise.
func (e MultiError) Err() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	default:
		return e
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the numeric code of err, or 0 if it is unclassified.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsAuthorization returns true if the caller lacked a role or ownership.
func IsAuthorization(err error) bool {
	return err != nil && KindOf(err) == KindAuthorization
}

// IsValidation returns true if the parameters were rejected.
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrStoreFailure) ||
		errors.Is(err, ErrClockUnavailable)
}

// transferError wraps a collaborator failure as ErrTransferFailed.
func transferError(cause error) error {
	return fmt.Errorf("%w: %w", ErrTransferFailed, cause)
}

// storeError wraps an unclassified store failure as ErrStoreFailure.
// Classified errors pass through unchanged.
func storeError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}
