package services

import (
	"errors"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorLimitReached ErrorCode = "limit_reached"
	ErrorClosed       ErrorCode = "closed"
	ErrorInternal     ErrorCode = "internal"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewLimitReachedError(msg string) error {
	return &ServiceError{Code: ErrorLimitReached, Message: msg}
}

func NewClosedError(msg string) error { return &ServiceError{Code: ErrorClosed, Message: msg} }

// NewInternalError hides cause behind msg; cause stays reachable through errors.Unwrap for logging.
func NewInternalError(msg string, cause error) error {
	return &ServiceError{Code: ErrorInternal, Message: msg, Err: cause}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether err is a ServiceError carrying code.
func HasCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

// Messages shared by several operations. Missing and foreign surveys share one message.
const (
	msgSurveyNotFound   = "Survey not found or unauthorized"
	msgUnauthenticated  = "You must be logged in."
	msgNoQuestions      = "Cannot publish a survey with no questions"
	msgDuplicate        = "You have already filled this survey."
	msgLimitReached     = "Survey limit reached."
	msgClosed           = "Survey is not accepting responses."
	msgSubmissionFailed = "Failed to submit survey."
	msgUpdateFailed     = "Failed to update survey"
)

// Outcomes of the admission transaction reported by a ResponseStore.
var (
	ErrSurveyNotFound   = errors.New("survey not found")
	ErrAlreadyResponded = errors.New("response already recorded for participant")
	ErrResponseLimit    = errors.New("survey response limit reached")
	ErrSurveyClosed     = errors.New("survey not accepting responses")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrNoQuestions      = errors.New("survey has no questions")
)
