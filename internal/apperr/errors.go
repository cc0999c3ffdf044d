// Package apperr defines the single tagged error type used across reviewbot.
//
// Every failure the bot can observe maps to one Kind. Callers classify errors
// with errors.Is against the sentinel values below, or with KindOf. Errors only
// carry structured data; logging them is the caller's job.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindUpstreamStatus
	KindUpstreamRequest
	KindMalformedResponse
	KindMissingField
	KindEmptySubmissionList
	KindInvalidRecordType
	KindUnknownStatus
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindUpstreamRequest:
		return "upstream_request"
	case KindMalformedResponse:
		return "malformed_response"
	case KindMissingField:
		return "missing_field"
	case KindEmptySubmissionList:
		return "empty_submission_list"
	case KindInvalidRecordType:
		return "invalid_record_type"
	case KindUnknownStatus:
		return "unknown_status"
	case KindDelivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrConfiguration       = &Error{Kind: KindConfiguration}
	ErrUpstreamStatus      = &Error{Kind: KindUpstreamStatus}
	ErrUpstreamRequest     = &Error{Kind: KindUpstreamRequest}
	ErrMalformedResponse   = &Error{Kind: KindMalformedResponse}
	ErrMissingField        = &Error{Kind: KindMissingField}
	ErrEmptySubmissionList = &Error{Kind: KindEmptySubmissionList}
	ErrInvalidRecordType   = &Error{Kind: KindInvalidRecordType}
	ErrUnknownStatus       = &Error{Kind: KindUnknownStatus}
	ErrDelivery            = &Error{Kind: KindDelivery}
)

// Error is the tagged error value.
//
// Field names the offending key(s) for configuration and shape failures.
// Code is the HTTP status for KindUpstreamStatus. Value holds the rejected
// value (e.g. an unknown status string). Err is the wrapped cause.
type Error struct {
	Kind  Kind
	Field string
	Code  int
	Value string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindConfiguration:
		if e.Err != nil {
			b.WriteString("invalid configuration")
		} else {
			b.WriteString("missing required configuration")
		}
	case KindUpstreamStatus:
		fmt.Fprintf(&b, "upstream returned status %d", e.Code)
	case KindUpstreamRequest:
		b.WriteString("upstream request failed")
	case KindMalformedResponse:
		b.WriteString("malformed response")
	case KindMissingField:
		b.WriteString("missing field")
	case KindEmptySubmissionList:
		b.WriteString("submission list is empty")
	case KindInvalidRecordType:
		b.WriteString("submission record is not an object")
	case KindUnknownStatus:
		fmt.Fprintf(&b, "unknown review status %q", e.Value)
	case KindDelivery:
		b.WriteString("message delivery failed")
	default:
		b.WriteString("error")
	}
	if e.Field != "" {
		b.WriteString(" (")
		b.WriteString(e.Field)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Configuration(fields ...string) error {
	return &Error{Kind: KindConfiguration, Field: strings.Join(fields, ", ")}
}

func UpstreamStatus(code int) error {
	return &Error{Kind: KindUpstreamStatus, Code: code}
}

func UpstreamRequest(err error) error {
	return &Error{Kind: KindUpstreamRequest, Err: err}
}

func MalformedResponse(field string, err error) error {
	return &Error{Kind: KindMalformedResponse, Field: field, Err: err}
}

func MissingField(field string) error {
	return &Error{Kind: KindMissingField, Field: field}
}

func EmptySubmissionList() error {
	return &Error{Kind: KindEmptySubmissionList, Field: "homeworks"}
}

func InvalidRecordType(got any) error {
	return &Error{Kind: KindInvalidRecordType, Value: fmt.Sprintf("%T", got)}
}

func UnknownStatus(value string) error {
	return &Error{Kind: KindUnknownStatus, Field: "status", Value: value}
}

func Delivery(err error) error {
	return &Error{Kind: KindDelivery, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRecoverable reports whether a poll cycle failing with err may be retried
// on the next cycle. Configuration errors are the only fatal kind.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	return KindOf(err) != KindConfiguration
}
