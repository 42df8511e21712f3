package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Kind classifies failures so the HTTP layer can map them to a status.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindStateConflict
	KindNotFound
	KindExternalService
	KindIntegrity
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindNotFound:
		return "not_found"
	case KindExternalService:
		return "external_service"
	case KindIntegrity:
		return "integrity"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is a classified, user-presentable failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, msg string) *Error { return newError(KindValidation, code, msg) }
func Conflict(code, msg string) *Error   { return newError(KindStateConflict, code, msg) }
func NotFound(code, msg string) *Error   { return newError(KindNotFound, code, msg) }
func External(code, msg string) *Error   { return newError(KindExternalService, code, msg) }
func Integrity(code, msg string) *Error  { return newError(KindIntegrity, code, msg) }
func Unauthorized(code, msg string) *Error {
	return newError(KindUnauthorized, code, msg)
}

var (
	ErrNoActiveVip            = Conflict("NO_ACTIVE_VIP", "no active VIP membership")
	ErrSessionAlreadyActive   = Conflict("SESSION_ALREADY_ACTIVE", "an earning session is already active")
	ErrSessionNotFinished     = Conflict("SESSION_NOT_FINISHED", "the earning session has not finished yet")
	ErrNoActiveSession        = NotFound("NO_ACTIVE_SESSION", "no active earning session")
	ErrInsufficientBalance    = Conflict("INSUFFICIENT_BALANCE", "insufficient wallet balance")
	ErrDowngradeNotAllowed    = Conflict("DOWNGRADE_NOT_ALLOWED", "cannot move to a tier priced at or below what was already paid")
	ErrBalanceWouldGoNegative = Integrity("NEGATIVE_BALANCE", "operation would make the wallet balance negative")
	ErrWithdrawalPending      = Conflict("WITHDRAWAL_PENDING", "a withdrawal is already pending")
	ErrDuplicateDeposit       = Conflict("DUPLICATE_DEPOSIT", "this transaction hash was already submitted")
	ErrReferralCycle          = Validation("REFERRAL_CYCLE", "referrer assignment would create a referral cycle")
	ErrSelfReferral           = Validation("SELF_REFERRAL", "a user cannot refer themselves")
	ErrInvalidAmount          = Validation("INVALID_AMOUNT", "amount must be positive")
	ErrUserNotFound           = NotFound("USER_NOT_FOUND", "user not found")
	ErrVipLevelNotFound       = NotFound("VIP_LEVEL_NOT_FOUND", "VIP level not found")
	ErrSessionNotFound        = NotFound("SESSION_NOT_FOUND", "earning session not found")
	ErrDepositNotFound        = NotFound("DEPOSIT_NOT_FOUND", "deposit not found")
	ErrWithdrawalNotFound     = NotFound("WITHDRAWAL_NOT_FOUND", "withdrawal not found")
	ErrNotPending             = Conflict("NOT_PENDING", "record is no longer pending")
	ErrEmailExists            = Conflict("EMAIL_EXISTS", "email already registered")
	ErrUsernameExists         = Conflict("USERNAME_EXISTS", "username already taken")
	ErrInvalidCredentials     = Unauthorized("INVALID_CREDENTIALS", "invalid email or password")
	ErrInvalidToken           = Unauthorized("INVALID_TOKEN", "invalid or expired token")
	ErrAccountDisabled        = Unauthorized("ACCOUNT_DISABLED", "account is disabled")
	ErrDuplicateLedgerEntry   = Conflict("DUPLICATE_LEDGER_ENTRY", "this event was already booked")
	ErrInvalidAddress         = Validation("INVALID_ADDRESS", "invalid withdrawal address for network")
	ErrInvalidNetwork         = Validation("INVALID_NETWORK", "unsupported network")
	ErrInvalidTxHash          = Validation("INVALID_TX_HASH", "invalid transaction hash")
)

// CooldownError reports that a new session cannot start yet.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, next session available in %d hour(s)", e.RemainingHours())
}

// RemainingHours rounds the remaining cooldown up to whole hours.
func (e *CooldownError) RemainingHours() int {
	return int(math.Ceil(e.Remaining.Hours()))
}

// KindOf returns the classification of err, walking wrapped errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	var ce *CooldownError
	if errors.As(err, &ce) {
		return KindStateConflict
	}
	return KindUnknown
}

// Message returns the user-facing message for classified errors.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return "internal error"
}
