// Package outcome defines the terminal result of an authorization attempt.
//
// An Outcome is either a Success carrying a session.Session or a Failure with one
// of a closed set of reasons. Consumers branch with Match, which forces both cases
// to be handled.
package outcome

import (
	"fmt"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/session"
)

// Reason classifies a failed or absent login.
type Reason string

const (
	// NoSession means there is no logged-in user: nothing could be resumed, or the
	// user logged out. It is a legitimate empty state rather than an error.
	NoSession Reason = "no_session"

	// CancelledByUser means the user-agent was dismissed without completing the flow.
	CancelledByUser Reason = "cancelled_by_user"

	// AuthInProgress is returned to a caller that tries to start a login while
	// another is still pending.
	AuthInProgress Reason = "auth_in_progress"

	// Other covers network, protocol and validation failures. Detail says which.
	Other Reason = "other"
)

// Failure is the failure branch of an Outcome. It implements error so it can be
// returned from functions with an error result and inspected with errors.As.
type Failure struct {
	Reason Reason
	Detail string
	Err    error // underlying cause, if any
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome is a Success or a Failure. The zero value is neither and reports IsZero.
type Outcome struct {
	session *session.Session
	failure *Failure
}

// Success wraps a session.
func Success(s session.Session) Outcome {
	return Outcome{session: &s}
}

// Fail builds a failed outcome.
func Fail(reason Reason, detail string) Outcome {
	return Outcome{failure: &Failure{Reason: reason, Detail: detail}}
}

func NoLoggedInUser() Outcome {
	return Fail(NoSession, "")
}

func Cancelled() Outcome {
	return Fail(CancelledByUser, "")
}

func InProgress() Outcome {
	return Outcome{failure: &Failure{Reason: AuthInProgress, Err: errors.ErrAuthInProgress}}
}

// OtherError builds an Other failure whose detail is the error message and whose
// cause is err.
func OtherError(err error) Outcome {
	return Outcome{failure: &Failure{Reason: Other, Detail: err.Error(), Err: err}}
}

// Session returns the session of a successful outcome.
func (o Outcome) Session() (session.Session, bool) {
	if o.session == nil {
		return session.Session{}, false
	}
	return *o.session, true
}

// Failure returns the failure of a failed outcome.
func (o Outcome) Failure() (*Failure, bool) {
	return o.failure, o.failure != nil
}

// Err returns the failure as an error, or nil for a success.
func (o Outcome) Err() error {
	if o.failure == nil {
		return nil
	}
	return o.failure
}

func (o Outcome) IsSuccess() bool {
	return o.session != nil
}

// Is reports whether the outcome is a failure with the given reason.
func (o Outcome) Is(reason Reason) bool {
	return o.failure != nil && o.failure.Reason == reason
}

func (o Outcome) IsZero() bool {
	return o.session == nil && o.failure == nil
}

// Match calls onSuccess or onFailure. The zero Outcome is treated as an internal failure.
func (o Outcome) Match(onSuccess func(session.Session), onFailure func(*Failure)) {
	switch {
	case o.session != nil:
		onSuccess(*o.session)
	case o.failure != nil:
		onFailure(o.failure)
	default:
		onFailure(&Failure{Reason: Other, Detail: "empty outcome", Err: errors.ErrInternal})
	}
}

func (o Outcome) String() string {
	switch {
	case o.session != nil:
		return fmt.Sprintf("Success(%s)", o.session)
	case o.failure != nil:
		return fmt.Sprintf("Failure(%s)", o.failure)
	default:
		return "Outcome{}"
	}
}

// FailureFrom extracts a Failure from err's chain. Errors that are not failures are
// reported as Other.
func FailureFrom(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Reason: Other, Detail: err.Error(), Err: err}
}
