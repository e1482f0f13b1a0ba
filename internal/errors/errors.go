package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure so handlers can decide user-visible behavior
// without inspecting error text.
type Kind string

const (
	// KindAuthMissing means no credentials are stored at all.
	KindAuthMissing Kind = "auth_missing"
	// KindAuthExpired means credentials are present but no longer accepted
	// and cannot be refreshed.
	KindAuthExpired Kind = "auth_expired"
	// KindScopeMissing means credentials lack a required permission.
	KindScopeMissing Kind = "scope_missing"
	// KindUpstreamAPI means the provider returned a non-auth 4xx/5xx.
	KindUpstreamAPI Kind = "upstream_api_error"
	// KindNetwork means the outbound call never produced a response.
	KindNetwork Kind = "network_error"
	// KindMalformed means the response payload had an unexpected shape.
	KindMalformed Kind = "malformed_response"
	// KindUnknown is returned for errors outside the taxonomy.
	KindUnknown Kind = "unknown"
)

// Auth errors

type ErrAuthMissing struct {
	Provider string
}

func (e *ErrAuthMissing) Error() string {
	return fmt.Sprintf("no %s credentials in session", e.Provider)
}

type ErrAuthExpired struct {
	Provider string
	Err      error
}

func (e *ErrAuthExpired) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s credentials expired: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s credentials expired", e.Provider)
}

func (e *ErrAuthExpired) Unwrap() error {
	return e.Err
}

type ErrScopeMissing struct {
	Provider string
	Scope    string
}

func (e *ErrScopeMissing) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s credentials lack required scope %s", e.Provider, e.Scope)
	}
	return fmt.Sprintf("%s credentials lack a required scope", e.Provider)
}

// ErrOAuthFlow covers failures inside an authorization flow itself: state
// mismatch, code exchange failure, request-token exchange failure. The user
// has to start the flow over, so it classifies as auth_missing.
type ErrOAuthFlow struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ErrOAuthFlow) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s authorization failed (%s): %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s authorization failed: %s", e.Provider, e.Reason)
}

func (e *ErrOAuthFlow) Unwrap() error {
	return e.Err
}

// ErrFlowRestart signals that an in-progress multi-leg flow lost its state
// (request token gone from the session) and must restart from the first leg.
type ErrFlowRestart struct {
	Provider string
}

func (e *ErrFlowRestart) Error() string {
	return fmt.Sprintf("%s authorization flow state lost, restart required", e.Provider)
}

// Upstream errors

type ErrUpstreamAPI struct {
	Provider string
	Status   int
	Code     string
	Message  string
}

func (e *ErrUpstreamAPI) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s API error [%s]: %s", e.Provider, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s API error (HTTP %d): %s", e.Provider, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s API error (HTTP %d)", e.Provider, e.Status)
	}
}

type ErrNetwork struct {
	Op  string
	Err error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *ErrNetwork) Unwrap() error {
	return e.Err
}

type ErrMalformed struct {
	Provider string
	Detail   string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("unexpected %s response: %s", e.Provider, e.Detail)
}

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Session store errors

type ErrSessionStore struct {
	Operation string
	Err       error
}

func (e *ErrSessionStore) Error() string {
	return fmt.Sprintf("session store %s failed: %v", e.Operation, e.Err)
}

func (e *ErrSessionStore) Unwrap() error {
	return e.Err
}

// KindOf walks the wrap chain and returns the Kind of the first taxonomy
// error it finds. Classification is a pure function of the error value.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var (
		authMissing *ErrAuthMissing
		authExpired *ErrAuthExpired
		scope       *ErrScopeMissing
		flow        *ErrOAuthFlow
		restart     *ErrFlowRestart
		upstream    *ErrUpstreamAPI
		network     *ErrNetwork
		malformed   *ErrMalformed
	)

	switch {
	case stderrors.As(err, &authExpired):
		return KindAuthExpired
	case stderrors.As(err, &scope):
		return KindScopeMissing
	case stderrors.As(err, &authMissing), stderrors.As(err, &flow), stderrors.As(err, &restart):
		return KindAuthMissing
	case stderrors.As(err, &network):
		return KindNetwork
	case stderrors.As(err, &malformed):
		return KindMalformed
	case stderrors.As(err, &upstream):
		return KindUpstreamAPI
	default:
		return KindUnknown
	}
}

// IsAuthKind reports whether the error requires the user to re-authenticate.
func IsAuthKind(err error) bool {
	switch KindOf(err) {
	case KindAuthMissing, KindAuthExpired, KindScopeMissing:
		return true
	}
	return false
}
