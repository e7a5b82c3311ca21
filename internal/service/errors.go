package service

import (
	"errors"
	"time"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

var (
	// ErrActivityNotFound is returned when a campaign activity cannot be found
	ErrActivityNotFound = errors.New("campaign activity not found")

	// ErrActivityClosed is returned when the activity is not in an admitting phase
	ErrActivityClosed = errors.New("campaign activity is not open")

	// ErrCapacityExhausted is returned when fewer slots remain than were requested
	ErrCapacityExhausted = errors.New("campaign activity capacity exhausted")

	// ErrIneligibleUser is returned when the user fails an eligibility filter
	ErrIneligibleUser = errors.New("user is not eligible for campaign activity")

	// ErrDuplicateEntry is returned when the user already holds a slot in the activity
	ErrDuplicateEntry = errors.New("user already entered campaign activity")

	// ErrInvalidToken is returned for unknown, forged, foreign or expired tokens
	ErrInvalidToken = errors.New("invalid reservation token")

	// ErrAlreadyRedeemed is returned when a token has already been redeemed
	ErrAlreadyRedeemed = errors.New("reservation token already redeemed")

	// ErrInvalidPayload is returned when request or payload data is invalid or incomplete
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrTransientStore is returned when the store failed in a way that may succeed on retry
	ErrTransientStore = errors.New("transient store error")

	// ErrSystemError is returned for unexpected failures
	ErrSystemError = errors.New("system error")

	// ErrSettlementDeferred is returned when a failed settlement was handed to the retry transport
	ErrSettlementDeferred = errors.New("settlement deferred to retry")

	// ErrFailureLogNotFound is returned when a failure log entry cannot be found
	ErrFailureLogNotFound = errors.New("failure log entry not found")

	// ErrInvalidTransition is returned for a forbidden activity status change
	ErrInvalidTransition = errors.New("invalid status transition")
)

// FailureKind is the stable reason code attached to a rejection or failure.
type FailureKind string

const (
	KindCapacityExhausted FailureKind = "CAPACITY_EXHAUSTED"
	KindIneligibleUser    FailureKind = "INELIGIBLE_USER"
	KindInvalidToken      FailureKind = "INVALID_TOKEN"
	KindAlreadyRedeemed   FailureKind = "ALREADY_REDEEMED"
	KindTransientStore    FailureKind = "TRANSIENT_STORE_ERROR"
	KindSystemError       FailureKind = "SYSTEM_ERROR"
	KindInvalidPayload    FailureKind = "INVALID_PAYLOAD"
	KindActivityClosed    FailureKind = "ACTIVITY_CLOSED"
	KindActivityNotFound  FailureKind = "ACTIVITY_NOT_FOUND"
	KindDuplicateEntry    FailureKind = "DUPLICATE_ENTRY"
)

// kindOrder is checked first to last. Terminal kinds win over retryable ones
// when an error wraps more than one sentinel, and an explicit system error wins
// over the store error it wraps.
var kindOrder = []struct {
	err  error
	kind FailureKind
}{
	{ErrAlreadyRedeemed, KindAlreadyRedeemed},
	{ErrInvalidToken, KindInvalidToken},
	{ErrInvalidPayload, KindInvalidPayload},
	{ErrCapacityExhausted, KindCapacityExhausted},
	{ErrIneligibleUser, KindIneligibleUser},
	{ErrDuplicateEntry, KindDuplicateEntry},
	{ErrActivityNotFound, KindActivityNotFound},
	{ErrActivityClosed, KindActivityClosed},
	{ErrSystemError, KindSystemError},
	{ErrTransientStore, KindTransientStore},
}

// KindOf classifies err. Unknown errors are system errors.
func KindOf(err error) FailureKind {
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindSystemError
}

// IsRetryable reports whether err may succeed if the same work is attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindTransientStore, KindSystemError:
		return true
	}
	return false
}

// SettlementError is a settlement failure that happened after the token was consumed.
// It carries what the caller needs to hand the work to the retry path.
type SettlementError struct {
	Payload    model.ReservationTokenPayload
	OccurredAt time.Time
	Err        error
}

func (e *SettlementError) Error() string {
	return "settle reservation: " + e.Err.Error()
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}
