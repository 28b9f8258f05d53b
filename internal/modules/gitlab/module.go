package gitlab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gitlabmr/server/internal/modules"
	"gitlabmr/server/pkg/gitlabapi"
)

// GitLabModule implements the Module interface for GitLab merge requests
type GitLabModule struct {
	client *gitlabapi.Client

	// initErr holds a construction failure. Tool calls surface it as an
	// error result instead of crashing the process.
	initErr error
}

// New creates a GitLabModule from environment configuration
// (PROJECT_ID, GITLAB_TOKEN, optional GITLAB_BASE_URL).
func New() *GitLabModule {
	projectID := os.Getenv("PROJECT_ID")
	if projectID == "" {
		return &GitLabModule{initErr: &gitlabapi.ConfigError{Variable: "PROJECT_ID"}}
	}

	client, err := gitlabapi.NewClient(projectID)
	if err != nil {
		return &GitLabModule{initErr: err}
	}
	return &GitLabModule{client: client}
}

// NewWithClient creates a GitLabModule backed by an existing client.
func NewWithClient(client *gitlabapi.Client) *GitLabModule {
	return &GitLabModule{client: client}
}

// Name returns the module name
func (m *GitLabModule) Name() string {
	return "gitlab"
}

// Description returns the module description
func (m *GitLabModule) Description() string {
	return "GitLab API - Merge request listing and diff download for one project"
}

// Tools returns all available tools
func (m *GitLabModule) Tools() []modules.Tool {
	return toolDefinitions
}

// ExecuteTool executes a tool by name and returns JSON response
func (m *GitLabModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	if m.initErr != nil {
		return errorResult(m.initErr.Error())
	}

	switch name {
	case "list_mr":
		return m.listMR(ctx, params)
	case "download_diff":
		return m.downloadDiff(ctx, params)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ======================================================================
// Tool Definitions
// ======================================================================

var toolDefinitions = []modules.Tool{
	{
		Name:        "list_mr",
		Description: "List merge requests for the GitLab project. Returns a 'display' field with formatted output plus structured data in 'merge_requests'.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"state": {
					Type:        "string",
					Description: "The state of MRs to filter by. Default: opened",
					Enum:        []string{"opened", "closed", "merged", "locked", "all"},
				},
				"filter_by": {
					Type:        "string",
					Description: "Filter MRs by user. Default: all",
					Enum:        []string{"all", "assigned_to_me", "created_by_me"},
				},
				"git_email": {
					Type:        "string",
					Description: "Optional git email to filter by instead of the current user",
				},
			},
		},
	},
	{
		Name:        "download_diff",
		Description: "Download raw diff content for a specific merge request and optionally save it to a timestamped file.",
		Annotations: modules.AnnotateCreate,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"mr_iid": {
					Type:        "string",
					Description: "The merge request IID (internal ID, e.g., \"123\")",
				},
				"save_to_file": {
					Type:        "boolean",
					Description: "Whether to save the diff to a timestamped file. Default: true",
				},
			},
			Required: []string{"mr_iid"},
		},
	},
}

var toJSON = modules.ToJSON

// errorResult wraps a failure message in the uniform error result shape.
// Tool handlers never propagate faults to the dispatcher.
func errorResult(msg string) (string, error) {
	return toJSON(map[string]string{"error": msg})
}

// ======================================================================
// list_mr
// ======================================================================

var validStates = []string{"opened", "closed", "merged", "locked", "all"}

type listResult struct {
	Display       string     `json:"display"`
	MergeRequests []mrRecord `json:"merge_requests"`
	TotalCount    int        `json:"total_count"`
	Filter        filterEcho `json:"filter"`
}

type mrRecord struct {
	IID          int64    `json:"iid"`
	Title        string   `json:"title"`
	State        string   `json:"state"`
	Author       string   `json:"author"`
	AuthorEmail  string   `json:"author_email"`
	SourceBranch string   `json:"source_branch"`
	TargetBranch string   `json:"target_branch"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
	WebURL       string   `json:"web_url"`
	Description  string   `json:"description"`
	Assignees    []string `json:"assignees"`
	Labels       []string `json:"labels"`
	Upvotes      int      `json:"upvotes"`
	Downvotes    int      `json:"downvotes"`
}

type filterEcho struct {
	State    string `json:"state"`
	FilterBy string `json:"filter_by"`
	GitEmail string `json:"git_email"`
}

func (m *GitLabModule) listMR(ctx context.Context, params map[string]any) (string, error) {
	state, _ := params["state"].(string)
	if state == "" {
		state = "opened"
	}
	filterBy, _ := params["filter_by"].(string)
	if filterBy == "" {
		filterBy = "all"
	}
	gitEmail, _ := params["git_email"].(string)

	if !isValidState(state) {
		return errorResult(fmt.Sprintf("Invalid state '%s'. Must be one of: opened, closed, merged, locked, all", state))
	}

	filter := gitlabapi.MergeRequestFilter{State: state, Scope: "all"}

	if filterBy == "assigned_to_me" || filterBy == "created_by_me" {
		var userID int64
		if gitEmail != "" {
			user := m.client.UserByEmail(ctx, gitEmail)
			if user == nil {
				return errorResult(fmt.Sprintf("User with email '%s' not found", gitEmail))
			}
			userID = user.ID
		} else {
			current, err := m.client.CurrentUser(ctx)
			if err != nil {
				return errorResult(err.Error())
			}
			userID = current.ID
		}

		if filterBy == "assigned_to_me" {
			filter.AssigneeID = userID
		} else {
			filter.AuthorID = userID
		}
	}

	mrs, err := m.client.MergeRequests(ctx, filter)
	if err != nil {
		return errorResult(err.Error())
	}

	records := make([]mrRecord, 0, len(mrs))
	for _, mr := range mrs {
		assignees := make([]string, 0, len(mr.Assignees))
		for _, a := range mr.Assignees {
			assignees = append(assignees, a.Name)
		}
		labels := mr.Labels
		if labels == nil {
			labels = []string{}
		}
		records = append(records, mrRecord{
			IID:          mr.IID,
			Title:        mr.Title,
			State:        mr.State,
			Author:       mr.Author.Name,
			AuthorEmail:  mr.Author.Email,
			SourceBranch: mr.SourceBranch,
			TargetBranch: mr.TargetBranch,
			CreatedAt:    mr.CreatedAt,
			UpdatedAt:    mr.UpdatedAt,
			WebURL:       mr.WebURL,
			Description:  mr.Description,
			Assignees:    assignees,
			Labels:       labels,
			Upvotes:      mr.Upvotes,
			Downvotes:    mr.Downvotes,
		})
	}

	return toJSON(listResult{
		Display:       formatMergeRequests(mrs),
		MergeRequests: records,
		TotalCount:    len(mrs),
		Filter: filterEcho{
			State:    state,
			FilterBy: filterBy,
			GitEmail: gitEmail,
		},
	})
}

func isValidState(state string) bool {
	for _, s := range validStates {
		if s == state {
			return true
		}
	}
	return false
}

// ======================================================================
// download_diff
// ======================================================================

type downloadResult struct {
	MRIID       string `json:"mr_iid"`
	RawDiff     string `json:"raw_diff"`
	DiffSize    int    `json:"diff_size"`
	SavedToFile bool   `json:"saved_to_file"`
	FilePath    string `json:"file_path"`
}

func (m *GitLabModule) downloadDiff(ctx context.Context, params map[string]any) (string, error) {
	mrIID, _ := params["mr_iid"].(string)
	if !isDigits(mrIID) {
		return errorResult("MR IID must be a number")
	}

	saveToFile := true
	if v, ok := params["save_to_file"].(bool); ok {
		saveToFile = v
	}

	// Fetch happens before the output directory check. A missing
	// DOWNLOAD_PATH wastes the network call but keeps the behavior of
	// fetch-then-persist.
	rawDiff, err := m.client.RawDiff(ctx, mrIID)
	if err != nil {
		return errorResult(err.Error())
	}

	result := downloadResult{
		MRIID:    mrIID,
		RawDiff:  rawDiff,
		DiffSize: len(rawDiff),
	}

	if saveToFile {
		outputDir := os.Getenv("DOWNLOAD_PATH")
		if outputDir == "" {
			return errorResult("DOWNLOAD_PATH environment variable not set")
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return errorResult(err.Error())
		}

		timestamp := time.Now().Format("2006-01-02_150405")
		filename := fmt.Sprintf("%s.merge-diff-%s.txt", timestamp, mrIID)
		path := filepath.Join(outputDir, filename)

		if err := os.WriteFile(path, []byte(rawDiff), 0o644); err != nil {
			return errorResult(err.Error())
		}

		result.SavedToFile = true
		result.FilePath = path
	}

	return toJSON(result)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
