package service

import "fmt"

// ErrorCode classifies a rejected placement.
type ErrorCode string

const (
	CodeParse               ErrorCode = "PARSE_ERROR"
	CodeConfigMissing       ErrorCode = "CONFIG_MISSING"
	CodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	CodeLimitExceeded       ErrorCode = "LIMIT_EXCEEDED"
	CodeRoundNotOpen        ErrorCode = "ROUND_NOT_OPEN"
	CodeRoundNotFound       ErrorCode = "ROUND_NOT_FOUND"
	CodePlayerNotFound      ErrorCode = "PLAYER_NOT_FOUND"
	CodePlayerBanned        ErrorCode = "PLAYER_BANNED"
)

// PlacementError is returned when a wager is rejected. Nothing has been
// written when it is returned.
type PlacementError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *PlacementError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PlacementError) Unwrap() error {
	return e.Cause
}

// Is matches any PlacementError with the same code.
func (e *PlacementError) Is(target error) bool {
	t, ok := target.(*PlacementError)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrParse               = &PlacementError{Code: CodeParse}
	ErrConfigMissing       = &PlacementError{Code: CodeConfigMissing}
	ErrInsufficientBalance = &PlacementError{Code: CodeInsufficientBalance}
	ErrLimitExceeded       = &PlacementError{Code: CodeLimitExceeded}
	ErrRoundNotOpen        = &PlacementError{Code: CodeRoundNotOpen}
	ErrRoundNotFound       = &PlacementError{Code: CodeRoundNotFound}
	ErrPlayerNotFound      = &PlacementError{Code: CodePlayerNotFound}
	ErrPlayerBanned        = &PlacementError{Code: CodePlayerBanned}
)

func reject(code ErrorCode, message string, cause error) *PlacementError {
	return &PlacementError{Code: code, Message: message, Cause: cause}
}
