package app

import "net/http"

// DomainError carries the wire status and the plain-text diagnostic body
// for a failed request. The constructors below are the fixed mapping from
// failure kind to status code; handlers never pick codes ad hoc.
type DomainError struct {
	Status  int
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func badRequest(message string) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Message: message}
}

// lengthRequired covers both transport-contract violations: a missing
// Content-Length and a wrong media type answer 411 on this wire.
func lengthRequired(message string) *DomainError {
	return &DomainError{Status: http.StatusLengthRequired, Message: message}
}

// tooManyRequests signals a (sender, sent) collision; the one condition a
// client may retry, with a different timestamp.
func tooManyRequests(message string) *DomainError {
	return &DomainError{Status: http.StatusTooManyRequests, Message: message}
}

// notFound answers a storage failure on the fetch query path.
func notFound(message string) *DomainError {
	return &DomainError{Status: http.StatusNotFound, Message: message}
}

func internalError(message string) *DomainError {
	return &DomainError{Status: http.StatusInternalServerError, Message: message}
}
