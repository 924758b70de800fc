package goAuthClient

import "errors"

var (
	// ErrNoSession is returned when no session is stored. It marks the
	// logged-out state, not a subsystem failure.
	ErrNoSession = errors.New("no session")
	// ErrInvalidCredentials is returned when the login endpoint rejects the
	// supplied email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuth is returned when a request and its single allowed retry were both
	// rejected, or when refresh failed on the request path. The session has been
	// torn down by the time callers observe it.
	ErrAuth = errors.New("authentication failed")
	// ErrRefreshFailed is returned when the upstream renewal call failed. Every
	// waiter of the same single-flight cycle receives the identical error.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrTransport is returned for network failures unrelated to authorization.
	// The cause is wrapped; this subsystem never retries them.
	ErrTransport = errors.New("transport failure")
	// ErrClientNotReady is returned when the Client is used before Build or with
	// missing dependencies.
	ErrClientNotReady = errors.New("client not initialized")
)
