// Package errs defines the closed taxonomy of protocol-level errors the
// REST sink can raise, and the HTTP status each maps to. Rather than a
// deep class hierarchy of error types, it is one tagged struct:
// serializers switch on Code to decide which child elements to emit.
package errs

import (
	"net/http"
	"strconv"
)

// Code identifies one member of the closed wire error set.
type Code string

const (
	AssetNotFound         Code = "ASSET_NOT_FOUND"
	InternalError         Code = "INTERNAL_ERROR"
	InvalidRequest        Code = "INVALID_REQUEST"
	InvalidURI            Code = "INVALID_URI"
	InvalidXPath          Code = "INVALID_XPATH"
	NoDevice              Code = "NO_DEVICE"
	OutOfRange            Code = "OUT_OF_RANGE"
	QueryError            Code = "QUERY_ERROR"
	TooMany               Code = "TOO_MANY"
	Unauthorized          Code = "UNAUTHORIZED"
	Unsupported           Code = "UNSUPPORTED"
	InvalidParameterValue Code = "INVALID_PARAMETER_VALUE"
	InvalidQueryParameter Code = "INVALID_QUERY_PARAMETER"
)

// Status returns the HTTP status code this wire error maps to.
func (c Code) Status() int {
	switch c {
	case NoDevice, AssetNotFound, InvalidURI:
		return http.StatusNotFound
	case InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// ElementName returns the XML/JSON element name used for schema >= 2.6
// error serialization, e.g. "InvalidParameterValue", "OutOfRange".
// This mapping is bijective over the closed Code set.
func (c Code) ElementName() string {
	switch c {
	case AssetNotFound:
		return "AssetNotFound"
	case InternalError:
		return "InternalError"
	case InvalidRequest:
		return "InvalidRequest"
	case InvalidURI:
		return "InvalidURI"
	case InvalidXPath:
		return "InvalidXPath"
	case NoDevice:
		return "NoDevice"
	case OutOfRange:
		return "OutOfRange"
	case QueryError:
		return "QueryError"
	case TooMany:
		return "TooMany"
	case Unauthorized:
		return "Unauthorized"
	case Unsupported:
		return "Unsupported"
	case InvalidParameterValue:
		return "InvalidParameterValue"
	case InvalidQueryParameter:
		return "InvalidQueryParameter"
	default:
		return "Error"
	}
}

// QueryParameter carries the variant-specific payload for
// InvalidParameterValue and OutOfRange errors.
type QueryParameter struct {
	Name    string
	Value   string
	Type    string // declared type tag, e.g. "integer"
	Format  string // e.g. "int32", "int64", "double", "bool", "string"
	Minimum *int64
	Maximum *int64
}

// Error is one occurrence of a wire error. Zero or more may be aggregated
// into a Many for a single response.
type Error struct {
	Code    Code
	Message string
	URI     string
	Request string
	Param   *QueryParameter // InvalidParameterValue, OutOfRange
	AssetID string          // AssetNotFound
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}

// Many aggregates multiple Errors raised by a single request, e.g. one
// AssetNotFound per missing id in a comma-separated asset list. All errors
// in a Many share one HTTP status — the status of the first error, since
// the closed set never mixes 4xx classes with 5xx in one response path.
type Many struct {
	Errors []*Error
}

func (m *Many) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	s := m.Errors[0].Error()
	for _, e := range m.Errors[1:] {
		s += "; " + e.Error()
	}
	return s
}

// Status returns the HTTP status for the aggregate, taken from the first
// error (RestError carries one status for the whole response).
func (m *Many) Status() int {
	if len(m.Errors) == 0 {
		return http.StatusInternalServerError
	}
	return m.Errors[0].Code.Status()
}

// New constructs a single-error Many, the common case.
func New(code Code, message string) *Many {
	return &Many{Errors: []*Error{{Code: code, Message: message}}}
}

// NoDeviceError builds a NO_DEVICE error for a missing device name/uuid.
func NoDeviceError(name string) *Many {
	return New(NoDevice, "Could not find the device '"+name+"'")
}

// InvalidParameterValueError builds an INVALID_PARAMETER_VALUE error
// naming the offending parameter, its declared type/format, and the raw
// value.
func InvalidParameterValueError(name, typ, format, value string) *Many {
	return &Many{Errors: []*Error{{
		Code:    InvalidParameterValue,
		Message: "'" + value + "' is not a valid value for '" + name + "'",
		Param:   &QueryParameter{Name: name, Value: value, Type: typ, Format: format},
	}}}
}

// OutOfRangeError builds an OUT_OF_RANGE error naming the parameter and its
// current valid bounds.
func OutOfRangeError(name string, value, min, max int64) *Many {
	return &Many{Errors: []*Error{{
		Code:    OutOfRange,
		Message: "'" + name + "' must be between " + strconv.FormatInt(min, 10) + " and " + strconv.FormatInt(max, 10),
		Param: &QueryParameter{
			Name: name, Value: strconv.FormatInt(value, 10), Minimum: &min, Maximum: &max,
		},
	}}}
}

// AssetsNotFoundError aggregates one AssetNotFound error per missing id.
func AssetsNotFoundError(ids []string) *Many {
	m := &Many{}
	for _, id := range ids {
		m.Errors = append(m.Errors, &Error{
			Code:    AssetNotFound,
			Message: "Could not find asset '" + id + "'",
			AssetID: id,
		})
	}
	return m
}
