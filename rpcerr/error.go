package rpcerr

import (
	"errors"
	"fmt"
)

// Kind is an enum that identifies the stage of the call-and-convert pipeline
// an error originated from. The set is closed: every error returned by the
// client carries exactly one of the kinds below.
type Kind uint8

const (
	// KindUnknown is never assigned to an Error. It is returned by KindOf
	// for errors that did not originate from this module.
	KindUnknown Kind = iota

	// KindMissingAuthentication indicates that the deployment requires
	// credentials but none were supplied.
	KindMissingAuthentication

	// KindInvalidCookieFile indicates that the cookie file could not be
	// opened, was empty, or did not contain a user:password line.
	KindInvalidCookieFile

	// KindInvalidURL indicates that the RPC server URL could not be
	// parsed or uses an unsupported scheme.
	KindInvalidURL

	// KindTransport indicates a connection, TLS or HTTP level failure.
	KindTransport

	// KindJSONRPC indicates that the server answered with a JSON-RPC
	// error object. The cause is always an *RPCError.
	KindJSONRPC

	// KindInvalidResponse indicates that the response envelope carried
	// neither a result nor an error.
	KindInvalidResponse

	// KindJSON indicates malformed JSON in a request or a response, or a
	// result whose shape does not match the expected type.
	KindJSON

	// KindHexToBytes indicates that a hex string could not be decoded
	// into bytes.
	KindHexToBytes

	// KindHashParse indicates that a hex string could not be parsed into
	// a 32-byte hash.
	KindHashParse

	// KindDecodeWire indicates that decoded bytes are not a valid
	// consensus encoding of a block, header or transaction.
	KindDecodeWire

	// KindBlockVerboseOne indicates that a verbose block response could
	// not be converted into the canonical model.
	KindBlockVerboseOne

	// KindBlockHeaderVerbose indicates that a verbose header response
	// could not be converted into the canonical model.
	KindBlockHeaderVerbose

	// KindBlockFilter indicates that a block filter response could not be
	// converted into the canonical model.
	KindBlockFilter

	// KindOverflow indicates that a numeric value reported by the server
	// does not fit into the target integer width.
	KindOverflow
)

// String returns a human readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindMissingAuthentication:
		return "authentication is required but none was provided"

	case KindInvalidCookieFile:
		return "invalid cookie file"

	case KindInvalidURL:
		return "invalid url"

	case KindTransport:
		return "transport error"

	case KindJSONRPC:
		return "JSON-RPC error"

	case KindInvalidResponse:
		return "invalid response"

	case KindJSON:
		return "JSON error"

	case KindHexToBytes:
		return "hex to bytes error"

	case KindHashParse:
		return "hash parsing error"

	case KindDecodeWire:
		return "consensus decoding error"

	case KindBlockVerboseOne:
		return "error converting getblock verbose response"

	case KindBlockHeaderVerbose:
		return "error converting getblockheader verbose response"

	case KindBlockFilter:
		return "error converting getblockfilter response"

	case KindOverflow:
		return "integer conversion overflow"

	default:
		return "unknown"
	}
}

// Category groups kinds by the stage of the pipeline that failed, so callers
// can tell an unreachable node from a response they cannot parse.
type Category uint8

const (
	// CategoryUnknown is the category of KindUnknown.
	CategoryUnknown Category = iota

	// CategoryAuth covers credential and URL configuration failures.
	CategoryAuth

	// CategoryTransport covers network failures and server reported
	// errors.
	CategoryTransport

	// CategorySerialization covers malformed or mismatched JSON.
	CategorySerialization

	// CategoryDecoding covers hex and consensus decoding failures.
	CategoryDecoding

	// CategoryModel covers failed conversions into canonical models.
	CategoryModel

	// CategoryNumeric covers integer range failures.
	CategoryNumeric
)

// String returns a human readable name for the category.
func (c Category) String() string {
	switch c {
	case CategoryAuth:
		return "auth"
	case CategoryTransport:
		return "transport"
	case CategorySerialization:
		return "serialization"
	case CategoryDecoding:
		return "decoding"
	case CategoryModel:
		return "model"
	case CategoryNumeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// Category returns the pipeline stage the kind belongs to.
func (k Kind) Category() Category {
	switch k {
	case KindMissingAuthentication, KindInvalidCookieFile, KindInvalidURL:
		return CategoryAuth

	case KindTransport, KindJSONRPC, KindInvalidResponse:
		return CategoryTransport

	case KindJSON:
		return CategorySerialization

	case KindHexToBytes, KindHashParse, KindDecodeWire:
		return CategoryDecoding

	case KindBlockVerboseOne, KindBlockHeaderVerbose, KindBlockFilter:
		return CategoryModel

	case KindOverflow:
		return CategoryNumeric

	default:
		return CategoryUnknown
	}
}

var (
	// ErrMissingAuthentication matches any error of kind
	// KindMissingAuthentication when used with errors.Is.
	ErrMissingAuthentication = &Error{Kind: KindMissingAuthentication}

	// ErrInvalidCookieFile matches any error of kind
	// KindInvalidCookieFile.
	ErrInvalidCookieFile = &Error{Kind: KindInvalidCookieFile}

	// ErrInvalidURL matches any error of kind KindInvalidURL.
	ErrInvalidURL = &Error{Kind: KindInvalidURL}

	// ErrTransport matches any error of kind KindTransport.
	ErrTransport = &Error{Kind: KindTransport}

	// ErrJSONRPC matches any error of kind KindJSONRPC.
	ErrJSONRPC = &Error{Kind: KindJSONRPC}

	// ErrInvalidResponse matches any error of kind KindInvalidResponse.
	ErrInvalidResponse = &Error{Kind: KindInvalidResponse}

	// ErrJSON matches any error of kind KindJSON.
	ErrJSON = &Error{Kind: KindJSON}

	// ErrHexToBytes matches any error of kind KindHexToBytes.
	ErrHexToBytes = &Error{Kind: KindHexToBytes}

	// ErrHashParse matches any error of kind KindHashParse.
	ErrHashParse = &Error{Kind: KindHashParse}

	// ErrDecodeWire matches any error of kind KindDecodeWire.
	ErrDecodeWire = &Error{Kind: KindDecodeWire}

	// ErrBlockVerboseOne matches any error of kind KindBlockVerboseOne.
	ErrBlockVerboseOne = &Error{Kind: KindBlockVerboseOne}

	// ErrBlockHeaderVerbose matches any error of kind
	// KindBlockHeaderVerbose.
	ErrBlockHeaderVerbose = &Error{Kind: KindBlockHeaderVerbose}

	// ErrBlockFilter matches any error of kind KindBlockFilter.
	ErrBlockFilter = &Error{Kind: KindBlockFilter}

	// ErrOverflow matches any error of kind KindOverflow.
	ErrOverflow = &Error{Kind: KindOverflow}
)

// Error is the single error type returned by every public operation of the
// client. It carries the kind, an optional message with call context, and at
// most one underlying cause.
type Error struct {
	// Kind identifies the failed stage.
	Kind Kind

	// Msg is optional context, e.g. the RPC method that failed.
	Msg string

	// Cause is the underlying error, if any. It is reachable through
	// errors.Unwrap for diagnostics.
	Cause error
}

// A compile time check to ensure Error implements the error interface.
var _ error = (*Error)(nil)

// New creates an error of the given kind without an underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Wrapf creates an error of the given kind around cause with a formatted
// message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:  kind,
		Msg:   fmt.Sprintf(format, args...),
		Cause: cause,
	}
}

// Error returns the kind, message and cause joined by colons.
func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}

	return s
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a bare sentinel of the same kind, which lets
// callers write errors.Is(err, rpcerr.ErrInvalidCookieFile).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	if t.Msg != "" || t.Cause != nil {
		return e == t
	}

	return t.Kind == e.Kind
}

// Category is a shortcut for e.Kind.Category().
func (e *Error) Category() Category {
	return e.Kind.Category()
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// RPCError is an error object returned by the server in place of a result.
// Code and Message are passed through verbatim.
type RPCError struct {
	Code    int64
	Message string
}

// Error returns the code and message of the server error.
func (e *RPCError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewRPCError wraps a server reported error into a KindJSONRPC error.
func NewRPCError(method string, code int64, message string) *Error {
	return &Error{
		Kind: KindJSONRPC,
		Msg:  method,
		Cause: &RPCError{
			Code:    code,
			Message: message,
		},
	}
}

// AsRPCError returns the server reported error in err's chain, if any.
func AsRPCError(err error) (*RPCError, bool) {
	var e *RPCError
	if errors.As(err, &e) {
		return e, true
	}

	return nil, false
}
