package jira

// Issue represents a single Jira issue from the REST API. Lookups
// request fields=id, so Fields is usually empty.
type Issue struct {
	ID     string       `json:"id"`
	Key    string       `json:"key"`
	Self   string       `json:"self"`
	Fields *IssueFields `json:"fields,omitempty"`
}

// IssueFields contains the issue fields this tool reads or writes.
type IssueFields struct {
	Status      *Status   `json:"status,omitempty"`
	FixVersions []Version `json:"fixVersions,omitempty"`
}

// Status represents the status of a Jira issue.
type Status struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Version is a project release, referenced by name.
type Version struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// TransitionRef identifies a transition in a transition request.
type TransitionRef struct {
	ID string `json:"id"`
}

// TransitionRequest is the body of POST /rest/api/2/issue/{id}/transitions.
type TransitionRequest struct {
	Transition TransitionRef `json:"transition"`
}

// FixVersionFields carries the fields of a fix-version update.
type FixVersionFields struct {
	FixVersions []Version `json:"fixVersions"`
}

// FixVersionUpdate is the body of PUT /rest/api/2/issue/{id} when
// setting the fix version.
type FixVersionUpdate struct {
	Fields FixVersionFields `json:"fields"`
}

// Transition represents a possible status transition for a Jira issue.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   Status `json:"to"`
}

// TransitionsResponse wraps the list of transitions returned by the API.
type TransitionsResponse struct {
	Transitions []Transition `json:"transitions"`
}

// Myself is the response from GET /rest/api/2/myself.
type Myself struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// ErrorResponse is the standard Jira error response format.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
