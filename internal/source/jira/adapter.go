package jira

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nhle/jira-transition/internal/crossref"
	"github.com/nhle/jira-transition/internal/source"
)

// lookupFields limits issue lookups to the internal id.
const lookupFields = "id"

// Adapter implements source.Tracker for Jira Server/DC.
type Adapter struct {
	client *Client
	logger *slog.Logger
}

// NewAdapter creates a new Jira tracker adapter. A nil logger falls back
// to slog.Default().
func NewAdapter(client *Client, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		client: client,
		logger: logger,
	}
}

// BaseURL normalizes a configured hostname into a Jira root URL. A bare
// host gets the https scheme; a value that already has a scheme is kept.
func BaseURL(hostname string) string {
	host := strings.TrimRight(strings.TrimSpace(hostname), "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

// Type returns the source type identifier for Jira.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeJira
}

// ValidateConnection verifies credentials by calling GET /rest/api/2/myself.
// Returns the user's display name on success.
func (a *Adapter) ValidateConnection(
	ctx context.Context,
) (string, error) {
	var me Myself
	if err := a.client.Get(ctx, "/rest/api/2/myself", &me); err != nil {
		return "", fmt.Errorf("validating Jira connection: %w", err)
	}
	return me.DisplayName, nil
}

// FindIssue extracts the issue number from branch and fetches the
// matching issue of projectKey, requesting only its id.
func (a *Adapter) FindIssue(
	ctx context.Context,
	projectKey string,
	branch string,
) source.Lookup {
	ref := crossref.ExtractIssueID(branch, projectKey)
	if ref == "" {
		return source.Lookup{Status: source.LookupNoReference}
	}

	key := crossref.IssueKey(projectKey, ref)
	path := fmt.Sprintf(
		"/rest/api/2/issue/%s?fields=%s",
		url.PathEscape(key), lookupFields,
	)

	var issue Issue
	if err := a.client.Get(ctx, path, &issue); err != nil {
		if IsNotFound(err) {
			return source.Lookup{Status: source.LookupNotFound, Key: key}
		}
		return source.Lookup{
			Status: source.LookupFailed,
			Key:    key,
			Err:    fmt.Errorf("fetching Jira issue %s: %w", key, err),
		}
	}

	if issue.ID == "" {
		return source.Lookup{
			Status: source.LookupFailed,
			Key:    key,
			Err:    fmt.Errorf("jira issue %s returned without an id", key),
		}
	}

	if issue.Key == "" {
		issue.Key = key
	}

	return source.Lookup{
		Status: source.LookupFound,
		Key:    key,
		Issue:  &source.Issue{ID: issue.ID, Key: issue.Key},
	}
}

// Transition performs a status transition on a Jira issue. Any 2xx
// answer counts as applied; Jira normally replies 204 No Content.
func (a *Adapter) Transition(
	ctx context.Context,
	issueID string,
	transitionID string,
) bool {
	path := fmt.Sprintf(
		"/rest/api/2/issue/%s/transitions", url.PathEscape(issueID),
	)
	payload := TransitionRequest{
		Transition: TransitionRef{ID: transitionID},
	}

	if err := a.client.Post(ctx, path, payload, nil); err != nil {
		a.logger.Warn("transition rejected",
			"issue_id", issueID,
			"transition_id", transitionID,
			"error", err,
		)
		a.logAvailableTransitions(ctx, issueID)
		return false
	}
	return true
}

// SetFixVersion sets the fix version of a Jira issue. An empty version is
// a no-op. Rejections are logged but still reported as success, so a
// release tag never changes the outcome of a run.
func (a *Adapter) SetFixVersion(
	ctx context.Context,
	issueID string,
	version string,
) bool {
	if version == "" {
		return true
	}

	path := fmt.Sprintf("/rest/api/2/issue/%s", url.PathEscape(issueID))
	payload := FixVersionUpdate{
		Fields: FixVersionFields{
			FixVersions: []Version{{Name: version}},
		},
	}

	if err := a.client.Put(ctx, path, payload, nil); err != nil {
		a.logger.Warn("fix version not set",
			"issue_id", issueID,
			"version", version,
			"error", err,
		)
	}
	return true
}

// Transitions returns the transitions currently available on an issue.
func (a *Adapter) Transitions(
	ctx context.Context,
	issueID string,
) ([]Transition, error) {
	path := fmt.Sprintf(
		"/rest/api/2/issue/%s/transitions", url.PathEscape(issueID),
	)

	var transResp TransitionsResponse
	if err := a.client.Get(ctx, path, &transResp); err != nil {
		return nil, fmt.Errorf(
			"fetching transitions for %s: %w", issueID, err,
		)
	}
	return transResp.Transitions, nil
}

// logAvailableTransitions lists valid transition ids at debug level to
// help fix a misconfigured JIRA_TRANSITION_ID.
func (a *Adapter) logAvailableTransitions(ctx context.Context, issueID string) {
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	transitions, err := a.Transitions(ctx, issueID)
	if err != nil {
		a.logger.Debug("listing transitions failed", "error", err)
		return
	}

	available := make([]string, 0, len(transitions))
	for _, t := range transitions {
		available = append(available, fmt.Sprintf("%s (%s)", t.ID, t.Name))
	}
	a.logger.Debug("available transitions",
		"issue_id", issueID,
		"transitions", strings.Join(available, ", "),
	)
}
