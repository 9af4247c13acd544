package crossref

import (
	"regexp"
	"strings"
)

// jiraKeyPattern matches Jira issue keys (e.g., PROJ-123, ABC-1).
var jiraKeyPattern = regexp.MustCompile(`([A-Z][A-Z0-9]+-\d+)`)

// ignoredPrefix marks branches opened by error-tracking automation.
const ignoredPrefix = "sentry"

// ExtractIssueID returns the four-digit issue number referenced by a
// branch name, or "" when the branch has none. The branch is case-folded
// and an optional "<projectKey>-" prefix may precede the digits. Branches
// starting with "sentry" never reference an issue. When several four-digit
// runs appear, the leftmost one wins.
func ExtractIssueID(branch, projectKey string) string {
	lower := strings.ToLower(branch)
	if strings.HasPrefix(lower, ignoredPrefix) {
		return ""
	}

	m := issuePattern(projectKey).FindStringSubmatch(lower)
	if m == nil {
		return ""
	}
	return m[1]
}

// IssueKey builds the tracker key "<PROJECT>-<id>".
func IssueKey(projectKey, id string) string {
	return strings.ToUpper(projectKey) + "-" + id
}

// issuePattern compiles the per-project reference pattern.
func issuePattern(projectKey string) *regexp.Regexp {
	prefix := ""
	if key := strings.ToLower(strings.TrimSpace(projectKey)); key != "" {
		prefix = "(?:" + regexp.QuoteMeta(key) + "-)?"
	}
	return regexp.MustCompile(prefix + `(\d{4})`)
}

// ExtractJiraKeys extracts all Jira issue key matches from text.
// Returns a deduplicated list preserving the order of first occurrence.
func ExtractJiraKeys(text string) []string {
	matches := jiraKeyPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		result = append(result, m)
	}
	return result
}

// MatchProjectKeys returns the keys found in text that belong to the
// given project. Matching on the project is case-insensitive; the text
// must carry the key in upper case as Jira renders it.
func MatchProjectKeys(text, projectKey string) []string {
	keys := ExtractJiraKeys(text)
	if projectKey == "" {
		return keys
	}

	prefix := strings.ToUpper(projectKey) + "-"
	var filtered []string
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			filtered = append(filtered, key)
		}
	}
	return filtered
}
