// Package apperrors provides the typed error taxonomy for lectern.
// Every failure that reaches the top of a lecture run is one of these kinds,
// and the kind decides how the UI reacts.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind categorizes errors for consistent handling across the application.
type Kind int

const (
	// KindUnknown indicates an unclassified error
	KindUnknown Kind = iota
	// KindDecode indicates malformed base64 or malformed PCM framing
	KindDecode
	// KindEmptyResponse indicates the speech service returned no audio payload
	KindEmptyResponse
	// KindPlayback indicates an audio output device or context failure
	KindPlayback
	// KindRequest indicates a network or speech service failure
	KindRequest
	// KindCredential is the request failure caused by a missing, invalid or
	// unentitled API key. It matches KindRequest as well.
	KindCredential
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindDecode:
		return "decode"
	case KindEmptyResponse:
		return "empty_response"
	case KindPlayback:
		return "playback"
	case KindRequest:
		return "request"
	case KindCredential:
		return "credential"
	default:
		return fmt.Sprintf("unknown_kind_%d", k)
	}
}

// Error is a classified failure. Message is safe to show to the user; Err
// carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is checks.
var (
	ErrDecode        = &Error{Kind: KindDecode}
	ErrEmptyResponse = &Error{Kind: KindEmptyResponse}
	ErrPlayback      = &Error{Kind: KindPlayback}
	ErrRequest       = &Error{Kind: KindRequest}
	ErrCredential    = &Error{Kind: KindCredential}
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String() + " error"
	}
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A credential
// error also matches ErrRequest.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindCredential && t.Kind == KindRequest
}

// Decode creates a decode error.
func Decode(message string, err error) *Error {
	return &Error{Kind: KindDecode, Message: message, Err: err}
}

// EmptyResponse creates an empty-response error.
func EmptyResponse(message string) *Error {
	return &Error{Kind: KindEmptyResponse, Message: message}
}

// Playback creates a playback error.
func Playback(message string, err error) *Error {
	return &Error{Kind: KindPlayback, Message: message, Err: err}
}

// Request creates a request error.
func Request(message string, err error) *Error {
	return &Error{Kind: KindRequest, Message: message, Err: err}
}

// Credential creates a credential error.
func Credential(message string, err error) *Error {
	return &Error{Kind: KindCredential, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsCredential reports whether err is a credential failure.
func IsCredential(err error) bool {
	return KindOf(err) == KindCredential
}

// UserMessage renders err as the single line shown next to the error state.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case KindDecode:
		return "could not decode the audio returned by the speech service: " + e.Error()
	case KindEmptyResponse:
		return "the speech service returned no audio: " + e.Error()
	case KindPlayback:
		return "audio output failed: " + e.Error()
	case KindCredential:
		return "the API key was rejected, select a paid key and try again: " + e.Error()
	case KindRequest:
		return "speech request failed: " + e.Error()
	default:
		return e.Error()
	}
}
