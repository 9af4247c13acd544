package source

import (
	"context"
	"errors"
	"fmt"
)

// AuthError indicates that authentication has failed or expired for a source.
// It is returned by source clients when a 401 response is received.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of issue tracker.
type SourceType string

const (
	SourceTypeJira SourceType = "jira"
)

// LookupStatus classifies the result of resolving a branch to an issue.
type LookupStatus string

const (
	// LookupFound means the issue exists and was returned.
	LookupFound LookupStatus = "found"

	// LookupNoReference means the branch name carries no issue number,
	// so no request was made.
	LookupNoReference LookupStatus = "no-reference"

	// LookupNotFound means the tracker answered 404 for the derived key.
	LookupNotFound LookupStatus = "not-found"

	// LookupFailed covers every other failure: transport errors,
	// authentication, unexpected statuses.
	LookupFailed LookupStatus = "failed"
)

// Issue is the part of a tracker ticket the transition flow consumes.
type Issue struct {
	// ID is the tracker-internal numeric id used in follow-up calls.
	ID string

	// Key is the human-facing key, e.g. PROJ-1234.
	Key string
}

// Lookup is the outcome of FindIssue. Issue is set only when Status is
// LookupFound; Err is set only when Status is LookupFailed.
type Lookup struct {
	Status LookupStatus
	Key    string
	Issue  *Issue
	Err    error
}

// Found reports whether the lookup produced an issue.
func (l Lookup) Found() bool {
	return l.Status == LookupFound && l.Issue != nil
}

// Tracker is the contract the transition flow needs from an issue tracker.
type Tracker interface {
	// Type returns the tracker type identifier.
	Type() SourceType

	// FindIssue resolves a branch name to an issue of the given project.
	FindIssue(ctx context.Context, projectKey, branch string) Lookup

	// Transition applies a workflow transition. It reports whether the
	// tracker accepted it.
	Transition(ctx context.Context, issueID, transitionID string) bool

	// SetFixVersion records the release an issue ships in. An empty
	// version is a no-op.
	SetFixVersion(ctx context.Context, issueID, version string) bool
}
