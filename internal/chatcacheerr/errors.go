// Package chatcacheerr defines the two-tier error taxonomy shared by the
// cache engine (internal/cachedb, internal/lockmgr) and the outer tool
// layer: cache-layer errors describe what went wrong inside the engine;
// protocol-layer errors describe what the engine wants the caller to do
// about it. Project projects the former onto the latter at the
// repository boundary.
package chatcacheerr

import (
	"errors"
	"fmt"
)

// CacheKind enumerates the cache-layer error categories.
type CacheKind int

const (
	// KindDatabase covers pool exhaustion, driver errors, and other
	// storage-layer failures.
	KindDatabase CacheKind = iota
	// KindSerialization covers JSON (de)serialization failures.
	KindSerialization
	// KindLockFailed covers exhausted lock-acquisition retries.
	KindLockFailed
	// KindClock covers a failure to read the system clock (unused on
	// platforms where time.Now cannot fail, kept for completeness of
	// the taxonomy).
	KindClock
	// KindInvalidQuery covers a query the sanitizer rejected outright
	// (as opposed to one that degenerated to the empty sentinel, which
	// is not an error).
	KindInvalidQuery
	// KindInvalidInput covers malformed caller input (bad scope, empty
	// required field, etc).
	KindInvalidInput
	// KindNotFound covers a point lookup that found nothing.
	KindNotFound
)

// CacheError is the cache-layer error type. It always wraps an
// underlying cause (possibly nil for sentinel conditions like not-found).
type CacheError struct {
	Kind CacheKind
	Op   string
	Err  error
}

func (e *CacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache: %s", e.Op)
}

func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError builds a CacheError of the given kind.
func NewCacheError(kind CacheKind, op string, err error) *CacheError {
	return &CacheError{Kind: kind, Op: op, Err: err}
}

// LockAcquisitionFailed reports that WithLock exhausted its retry budget.
type LockAcquisitionFailed struct {
	Name     string
	Attempts int
}

func (e *LockAcquisitionFailed) Error() string {
	return fmt.Sprintf("lock %q: failed to acquire after %d attempts", e.Name, e.Attempts)
}

// ProtocolKind enumerates the error categories surfaced to the outer tool
// layer.
type ProtocolKind int

const (
	KindNotFoundProto ProtocolKind = iota
	KindInvalidParameter
	KindInternal
	KindUnauthorized
	KindRateLimited
	KindRemoteAPI
)

// ProtocolError is returned to tool handlers. RetryHint, when true, tells
// the caller the same operation may succeed if retried later.
type ProtocolError struct {
	Kind      ProtocolKind
	Message   string
	Code      string // remote error code, populated for KindRemoteAPI
	RetryHint bool
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NotFound builds a KindNotFoundProto protocol error.
func NotFound(msg string) *ProtocolError {
	return &ProtocolError{Kind: KindNotFoundProto, Message: msg}
}

// InvalidParameter builds a KindInvalidParameter protocol error.
func InvalidParameter(msg string) *ProtocolError {
	return &ProtocolError{Kind: KindInvalidParameter, Message: msg}
}

// Internal builds a KindInternal protocol error, optionally retriable.
func Internal(msg string, err error, retry bool) *ProtocolError {
	return &ProtocolError{Kind: KindInternal, Message: msg, Err: err, RetryHint: retry}
}

// Unauthorized builds a KindUnauthorized protocol error.
func Unauthorized(msg string) *ProtocolError {
	return &ProtocolError{Kind: KindUnauthorized, Message: msg}
}

// RateLimited builds a KindRateLimited protocol error.
func RateLimited(msg string) *ProtocolError {
	return &ProtocolError{Kind: KindRateLimited, Message: msg, RetryHint: true}
}

// RemoteAPI builds a KindRemoteAPI protocol error carrying the remote's
// error code string.
func RemoteAPI(code string) *ProtocolError {
	return &ProtocolError{Kind: KindRemoteAPI, Message: "remote API error", Code: code}
}

// Project maps a cache-layer error onto the protocol-layer error the
// outer tool layer should see, per spec §4.9 / §9. A nil error projects
// to nil. An error that already satisfies *ProtocolError passes through
// unchanged so callers that construct protocol errors directly (e.g. the
// HTTP client) don't get double-wrapped.
func Project(err error) *ProtocolError {
	if err == nil {
		return nil
	}

	var proto *ProtocolError
	if errors.As(err, &proto) {
		return proto
	}

	var lockErr *LockAcquisitionFailed
	if errors.As(err, &lockErr) {
		return Internal("refresh lock unavailable, try again shortly", lockErr, true)
	}

	var cacheErr *CacheError
	if errors.As(err, &cacheErr) {
		switch cacheErr.Kind {
		case KindNotFound:
			return NotFound("not found")
		case KindInvalidQuery, KindInvalidInput:
			return InvalidParameter(cacheErr.Error())
		case KindDatabase, KindSerialization, KindClock, KindLockFailed:
			return Internal("internal cache error", cacheErr, false)
		}
	}

	return Internal("internal error", err, false)
}
