package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nhle/jira-transition/internal/app"
	"github.com/nhle/jira-transition/internal/credential"
	"github.com/nhle/jira-transition/internal/crossref"
	"github.com/nhle/jira-transition/internal/logging"
	"github.com/nhle/jira-transition/internal/model"
	"github.com/nhle/jira-transition/internal/source"
	"github.com/nhle/jira-transition/internal/source/jira"
	"github.com/nhle/jira-transition/internal/theme"
)

// deps holds the side-effecting collaborators of the CLI so tests can
// replace them.
type deps struct {
	tokenLookup model.TokenLookup
	storeToken  func(token string) error
	deleteToken func() error
	promptToken func() (string, error)
}

func newDeps() deps {
	return deps{
		tokenLookup: credential.Token,
		storeToken: func(token string) error {
			return credential.Set(credential.TokenKey, token)
		},
		deleteToken: func() error {
			return credential.Delete(credential.TokenKey)
		},
		promptToken: promptToken,
	}
}

// flagBindings maps config keys to the root command's flag names.
var flagBindings = map[string]string{
	model.KeyProjectKey:   "project",
	model.KeyHostname:     "hostname",
	model.KeyTransitionID: "transition",
	model.KeyBranch:       "branch",
	model.KeyFixVersion:   "fix-version",
	model.KeyLogLevel:     "log-level",
	model.KeyLogFormat:    "log-format",
	model.KeyTimeout:      "timeout",
	model.KeyMaxRetries:   "max-retries",
	model.KeyUseKeyring:   "keyring",
	model.KeyDryRun:       "dry-run",
}

func newRootCmd(d deps) *cobra.Command {
	v := model.NewViper("")
	var configPath string

	root := &cobra.Command{
		Use:   "jira-transition",
		Short: "Transition the Jira issue referenced by a branch name",
		Long: `jira-transition extracts an issue number from the CI branch name,
looks up PROJECT-NNNN in Jira, applies the configured workflow transition
and optionally records a fix version.

Settings come from flags, then environment variables, then the optional
YAML config file:

  TOKEN                          Jira bearer token
  JIRA_PROJECT_KEY               project key, e.g. PROJ
  JIRA_HOSTNAME                  Jira host, e.g. jira.example.com
  JIRA_TRANSITION_ID             workflow transition id
  GITHUB_HEAD_REF / GITHUB_REF   branch name
  JIRA_FIX_VERSION               optional fix version name

Tracker failures are logged and never fail the build; only missing
settings exit non-zero.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return readConfigFile(v, configPath)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, v, d)
		},
	}

	flags := root.Flags()
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.String("project", "", "Jira project key (JIRA_PROJECT_KEY)")
	flags.String("hostname", "", "Jira hostname or base URL (JIRA_HOSTNAME)")
	flags.String("transition", "", "transition id to apply (JIRA_TRANSITION_ID)")
	flags.String("branch", "", "branch name (GITHUB_HEAD_REF, GITHUB_REF)")
	flags.String("fix-version", "", "fix version to record (JIRA_FIX_VERSION)")
	flags.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	flags.String("log-format", "", "text or json (LOG_FORMAT)")
	flags.Duration("timeout", 0, "per-request timeout, 0 for none (JIRA_TIMEOUT)")
	flags.Int("max-retries", 0, "retries on HTTP 429 (JIRA_MAX_RETRIES)")
	flags.Bool("keyring", false, "read the token from the system keyring when TOKEN is unset (JIRA_USE_KEYRING)")
	flags.Bool("dry-run", false, "look the issue up without changing it (JIRA_DRY_RUN)")

	for key, name := range flagBindings {
		// BindPFlag only fails for a nil flag.
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		newExtractCmd(v),
		newCheckCmd(v, d),
		newTokenCmd(d),
	)

	return root
}

// readConfigFile attaches an optional YAML file to v. A missing file is
// ignored so the same invocation works with env-only configuration.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// runTransition is the default command: one full lookup/transition run.
func runTransition(cmd *cobra.Command, v *viper.Viper, d deps) error {
	logger := newLogger(cmd.ErrOrStderr(), v)

	cfg, err := model.LoadConfig(v, d.tokenLookup)
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		return &loggedError{err: err}
	}

	adapter := jira.NewAdapter(newClient(cfg), logger)
	app.New(cfg, adapter, logger).Run(cmd.Context())
	return nil
}

// newLogger builds the process logger from whatever logging settings are
// already resolvable, so configuration errors are logged too. A broken
// Sentry DSN degrades to local logging only.
func newLogger(w io.Writer, v *viper.Viper) *slog.Logger {
	cfg := logging.Config{
		Level:     logging.ParseLevel(v.GetString(model.KeyLogLevel)),
		Format:    v.GetString(model.KeyLogFormat),
		SentryDSN: v.GetString(model.KeySentryDSN),
		Env:       v.GetString(model.KeyEnvironment),
		Version:   version,
		Output:    w,
	}

	l, err := logging.Init(cfg)
	if err != nil {
		cfg.SentryDSN = ""
		l, _ = logging.Init(cfg)
		l.Warn("sentry disabled", "error", err)
	}
	return l.Logger
}

func newClient(cfg model.Config) *jira.Client {
	return jira.NewClient(
		jira.BaseURL(cfg.Hostname),
		cfg.Token,
		jira.WithTimeout(cfg.Timeout),
		jira.WithMaxRetries(cfg.MaxRetries),
	)
}

func newExtractCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <branch>",
		Short: "Show which issue a branch name resolves to, without calling Jira",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, _ := cmd.Flags().GetString("project")
			if project == "" {
				project = v.GetString(model.KeyProjectKey)
			}
			writeExtraction(cmd.OutOrStdout(), args[0], project)
			return nil
		},
	}
	cmd.Flags().String("project", "", "Jira project key (defaults to JIRA_PROJECT_KEY)")
	return cmd
}

// writeExtraction prints the issue a branch resolves to.
func writeExtraction(w io.Writer, branch, project string) {
	ref := crossref.ExtractIssueID(branch, project)

	status, result := source.LookupNoReference, "no issue number"
	key := "-"
	if ref != "" {
		status, result = source.LookupFound, "would look up "+crossref.IssueKey(project, ref)
		key = crossref.IssueKey(project, ref)
	}

	upper := strings.ToUpper(branch)
	allKeys := joinKeys(crossref.ExtractJiraKeys(upper))
	projectKeys := joinKeys(crossref.MatchProjectKeys(upper, project))

	fmt.Fprintln(w, theme.HeaderStyle.Render("Branch "+branch))
	fmt.Fprintln(w, theme.Field("project", orDash(strings.ToUpper(project))))
	fmt.Fprintln(w, theme.Field("number", orDash(ref)))
	fmt.Fprintln(w, theme.Field("key", key))
	fmt.Fprintln(w, theme.Field("all keys", allKeys))
	fmt.Fprintln(w, theme.Field("proj keys", projectKeys))
	fmt.Fprintln(w, theme.LabelStyle.Render("result")+" "+theme.LookupStyle(status).Render(result))
}

func joinKeys(keys []string) string {
	if len(keys) == 0 {
		return "-"
	}
	return strings.Join(keys, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newCheckCmd(v *viper.Viper, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the Jira hostname and token",
		RunE: func(cmd *cobra.Command, args []string) error {
			hostname := v.GetString(model.KeyHostname)
			token := v.GetString(model.KeyToken)
			if token == "" && v.GetBool(model.KeyUseKeyring) && d.tokenLookup != nil {
				token, _ = d.tokenLookup()
			}

			var missing []string
			if token == "" {
				missing = append(missing, model.KeyToken)
			}
			if hostname == "" {
				missing = append(missing, model.KeyHostname)
			}
			if len(missing) > 0 {
				return &model.MissingConfigError{Keys: missing}
			}

			client := jira.NewClient(
				jira.BaseURL(hostname),
				strings.TrimSpace(token),
				jira.WithTimeout(v.GetDuration(model.KeyTimeout)),
			)
			name, err := jira.NewAdapter(client, slog.Default()).ValidateConnection(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), theme.Field("host", client.BaseURL()))
			fmt.Fprintln(cmd.OutOrStdout(), theme.Field("user", name))
			return nil
		},
	}
}

func newTokenCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the Jira token stored in the system keyring",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Store the Jira token (prompted, or read from stdin)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				token, err := readToken(cmd.InOrStdin(), d.promptToken)
				if err != nil {
					return err
				}
				if err := d.storeToken(token); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.HelpStyle.Render("token stored"))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the stored Jira token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := d.deleteToken(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.HelpStyle.Render("token deleted"))
				return nil
			},
		},
	)
	return cmd
}

// readToken prompts on a terminal and reads the first line otherwise.
func readToken(in io.Reader, prompt func() (string, error)) (string, error) {
	var token string
	if isTerminal(in) {
		t, err := prompt()
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		token = t
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading token: %w", err)
		}
		token = line
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func promptToken() (string, error) {
	var token string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Jira API token").
				Description("Stored in the system keyring.").
				EchoMode(huh.EchoModePassword).
				Value(&token),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return token, nil
}
