// Copyright 2024-2026 Aiku AI

package slackrtm

import (
	"fmt"
	"slices"
)

// APIError is returned when a Web API call fails: transport errors, bodies that
// are not valid JSON, and any response with "ok": false.
type APIError struct {
	Method string
	// Code is the "error" field of an ok:false response. Empty for transport
	// and decoding failures.
	Code string
	Err  error
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Err != nil:
		return fmt.Sprintf("slack: %s: %s: %v", e.Method, e.Code, e.Err)
	case e.Code != "":
		return fmt.Sprintf("slack: %s: %s", e.Method, e.Code)
	default:
		return fmt.Sprintf("slack: %s: %v", e.Method, e.Err)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AuthError is returned when the token is missing or rejected. A rejected
// token still unwraps to the underlying *APIError.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("slack: authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ConnectionError is returned when the realtime session cannot be started.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("slack: start realtime session: %v", e.Err)
	}
	return fmt.Sprintf("slack: connect realtime socket %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

var authErrorCodes = []string{
	"not_authed",
	"invalid_auth",
	"account_inactive",
	"token_revoked",
	"token_expired",
}

func isAuthErrorCode(code string) bool {
	return slices.Contains(authErrorCodes, code)
}
