package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nhle/jira-transition/internal/model"
	"github.com/nhle/jira-transition/internal/source"
)

// Outcome summarizes one transition run.
type Outcome struct {
	RunID        string
	Key          string
	Lookup       source.LookupStatus
	IssueID      string
	Transitioned bool
	VersionSet   bool
	DryRun       bool
}

// App moves the issue referenced by a branch through its workflow.
type App struct {
	cfg     model.Config
	tracker source.Tracker
	logger  *slog.Logger
}

// New creates an App. A nil logger falls back to slog.Default().
func New(cfg model.Config, tracker source.Tracker, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:     cfg,
		tracker: tracker,
		logger:  logger,
	}
}

// Run looks the issue up and, when found, applies the configured
// transition and fix version. Tracker failures are logged, never
// returned: a run always completes.
func (a *App) Run(ctx context.Context) Outcome {
	out := Outcome{
		RunID:  uuid.NewString(),
		DryRun: a.cfg.DryRun,
	}
	log := a.logger.With(
		"run_id", out.RunID,
		"tracker", string(a.tracker.Type()),
		"branch", a.cfg.Branch,
	)

	lookup := a.tracker.FindIssue(ctx, a.cfg.ProjectKey, a.cfg.Branch)
	out.Lookup = lookup.Status
	out.Key = lookup.Key

	switch lookup.Status {
	case source.LookupNoReference:
		log.Info("no issue found to transition", "reason", "branch carries no issue number")
		return out
	case source.LookupNotFound:
		log.Info("no issue found to transition", "key", lookup.Key, "reason", "issue does not exist")
		return out
	case source.LookupFailed:
		log.Warn("issue lookup failed, nothing transitioned", "key", lookup.Key, "error", lookup.Err)
		return out
	}

	if !lookup.Found() {
		log.Warn("issue lookup returned no issue", "status", string(lookup.Status))
		return out
	}

	out.IssueID = lookup.Issue.ID
	log = log.With("key", lookup.Issue.Key, "issue_id", lookup.Issue.ID)

	if a.cfg.DryRun {
		log.Info("dry run, issue left unchanged",
			"transition_id", a.cfg.TransitionID,
			"fix_version", a.cfg.FixVersion,
		)
		return out
	}

	out.Transitioned = a.tracker.Transition(ctx, lookup.Issue.ID, a.cfg.TransitionID)
	if out.Transitioned {
		log.Info("issue transitioned", "transition_id", a.cfg.TransitionID)
	} else {
		log.Warn("transition not applied, ticket not moved", "transition_id", a.cfg.TransitionID)
	}

	if a.cfg.FixVersion != "" {
		out.VersionSet = a.tracker.SetFixVersion(ctx, lookup.Issue.ID, a.cfg.FixVersion)
		if out.VersionSet {
			log.Info("fix version step done", "fix_version", a.cfg.FixVersion)
		}
	}

	return out
}
