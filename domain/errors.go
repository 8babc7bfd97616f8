package domain

import (
	"errors"
	"fmt"
)

// ErrorKind groups error codes by how a caller should react to them
type ErrorKind string

const (
	// KindValidation means the request itself is malformed or not allowed
	KindValidation ErrorKind = "validation"
	// KindState means the request conflicts with the current state of a resource
	KindState ErrorKind = "state"
	// KindConsistency means a multi-step operation stopped part way and needs operator attention
	KindConsistency ErrorKind = "consistency"
	// KindInfrastructure means a dependency failed and the request may be retried
	KindInfrastructure ErrorKind = "infrastructure"
)

// ErrorCode identifies a single business failure
type ErrorCode string

const (
	CodeMarketNotFound       ErrorCode = "MARKET_NOT_FOUND"
	CodeMarketClosed         ErrorCode = "MARKET_CLOSED"
	CodeUnknownOption        ErrorCode = "UNKNOWN_OPTION"
	CodeBelowMinimumStake    ErrorCode = "BELOW_MINIMUM_STAKE"
	CodeInsufficientFunds    ErrorCode = "INSUFFICIENT_FUNDS"
	CodeInvalidAmount        ErrorCode = "INVALID_AMOUNT"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeForbidden            ErrorCode = "FORBIDDEN"
	CodeInvalidState         ErrorCode = "INVALID_STATE"
	CodeMarketStarted        ErrorCode = "MARKET_STARTED"
	CodeNotReadyToSettle     ErrorCode = "NOT_READY_TO_SETTLE"
	CodeInvalidResult        ErrorCode = "INVALID_RESULT"
	CodeAlreadySettled       ErrorCode = "ALREADY_SETTLED"
	CodeUnknownTeam          ErrorCode = "UNKNOWN_TEAM"
	CodeDuplicateTeams       ErrorCode = "DUPLICATE_TEAMS"
	CodeInvalidRanking       ErrorCode = "INVALID_RANKING"
	CodeInvalidOptions       ErrorCode = "INVALID_OPTIONS"
	CodeInvalidInput         ErrorCode = "INVALID_INPUT"
	CodeUsernameTaken        ErrorCode = "USERNAME_TAKEN"
	CodeAccountBanned        ErrorCode = "ACCOUNT_BANNED"
	CodeActiveBetsExist      ErrorCode = "ACTIVE_BETS_EXIST"
	CodeRegistrationLimit    ErrorCode = "REGISTRATION_LIMIT"
	CodeSettlementIncomplete ErrorCode = "SETTLEMENT_INCOMPLETE"
	CodeUnavailable          ErrorCode = "UNAVAILABLE"
)

var codeKinds = map[ErrorCode]ErrorKind{
	CodeMarketNotFound:       KindValidation,
	CodeUnknownOption:        KindValidation,
	CodeBelowMinimumStake:    KindValidation,
	CodeInvalidAmount:        KindValidation,
	CodeNotFound:             KindValidation,
	CodeForbidden:            KindValidation,
	CodeInvalidResult:        KindValidation,
	CodeUnknownTeam:          KindValidation,
	CodeDuplicateTeams:       KindValidation,
	CodeInvalidRanking:       KindValidation,
	CodeInvalidOptions:       KindValidation,
	CodeInvalidInput:         KindValidation,
	CodeAccountBanned:        KindValidation,
	CodeMarketClosed:         KindState,
	CodeInsufficientFunds:    KindState,
	CodeInvalidState:         KindState,
	CodeMarketStarted:        KindState,
	CodeNotReadyToSettle:     KindState,
	CodeAlreadySettled:       KindState,
	CodeActiveBetsExist:      KindState,
	CodeUsernameTaken:        KindState,
	CodeRegistrationLimit:    KindState,
	CodeSettlementIncomplete: KindConsistency,
	CodeUnavailable:          KindInfrastructure,
}

// Error is the single error type returned for business rule violations.
// Callers branch on Code or Kind, never on the message text.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// NewError creates an error with the given code
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Kind returns the category of the error code
func (e *Error) Kind() ErrorKind {
	if kind, ok := codeKinds[e.Code]; ok {
		return kind
	}
	return KindInfrastructure
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrInsufficientFunds) works
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail attaches structured context to the error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Wrap records the underlying cause
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Sentinels for errors.Is comparisons
var (
	ErrMarketNotFound       = &Error{Code: CodeMarketNotFound, Message: "market not found"}
	ErrMarketClosed         = &Error{Code: CodeMarketClosed, Message: "market is not open for wagering"}
	ErrUnknownOption        = &Error{Code: CodeUnknownOption, Message: "unknown option"}
	ErrBelowMinimumStake    = &Error{Code: CodeBelowMinimumStake, Message: "amount is below the minimum stake"}
	ErrInsufficientFunds    = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrInvalidAmount        = &Error{Code: CodeInvalidAmount, Message: "amount must be positive"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden            = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInvalidState         = &Error{Code: CodeInvalidState, Message: "invalid state"}
	ErrMarketStarted        = &Error{Code: CodeMarketStarted, Message: "market has already started"}
	ErrNotReadyToSettle     = &Error{Code: CodeNotReadyToSettle, Message: "market is not ready to settle"}
	ErrInvalidResult        = &Error{Code: CodeInvalidResult, Message: "invalid result"}
	ErrAlreadySettled       = &Error{Code: CodeAlreadySettled, Message: "market already has a result"}
	ErrUnknownTeam          = &Error{Code: CodeUnknownTeam, Message: "team is not part of the tournament"}
	ErrDuplicateTeams       = &Error{Code: CodeDuplicateTeams, Message: "a team cannot play itself"}
	ErrInvalidRanking       = &Error{Code: CodeInvalidRanking, Message: "invalid ranking"}
	ErrInvalidOptions       = &Error{Code: CodeInvalidOptions, Message: "invalid market options"}
	ErrInvalidInput         = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrUsernameTaken        = &Error{Code: CodeUsernameTaken, Message: "username is already taken"}
	ErrAccountBanned        = &Error{Code: CodeAccountBanned, Message: "account is banned"}
	ErrActiveBetsExist      = &Error{Code: CodeActiveBetsExist, Message: "active bets exist"}
	ErrRegistrationLimit    = &Error{Code: CodeRegistrationLimit, Message: "registration limit reached"}
	ErrSettlementIncomplete = &Error{Code: CodeSettlementIncomplete, Message: "settlement incomplete"}
	ErrUnavailable          = &Error{Code: CodeUnavailable, Message: "service unavailable"}
)

// CodeOf extracts the error code from err, or "" when err is not a domain error
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf extracts the error kind from err. Unknown errors are infrastructure failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInfrastructure
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
