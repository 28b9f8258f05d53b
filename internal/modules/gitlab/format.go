package gitlab

import (
	"fmt"
	"strings"

	"gitlabmr/server/pkg/gitlabapi"
)

// formatMergeRequests renders the list as a human-readable display string.
// Detail lines are shown only when the list has exactly one entry.
func formatMergeRequests(mrs []gitlabapi.MergeRequest) string {
	if len(mrs) == 0 {
		return "No merge requests found."
	}

	showDetails := len(mrs) == 1

	var out []string
	out = append(out, fmt.Sprintf("\nMerge Requests (%d found):", len(mrs)))
	out = append(out, strings.Repeat("=", 60))

	for i, mr := range mrs {
		out = append(out, fmt.Sprintf("%d. %s MR !%d - %s", i+1, stateEmoji(mr.State), mr.IID, mr.Title))
		out = append(out, fmt.Sprintf("   👤 Author: %s", mr.Author.Name))
		out = append(out, fmt.Sprintf("   🌿 Source: %s → %s", mr.SourceBranch, mr.TargetBranch))
		out = append(out, fmt.Sprintf("   📅 Created: %s", truncate(mr.CreatedAt, 10)))

		if showDetails {
			desc := mr.Description
			if desc == "" {
				desc = "No description"
			}
			out = append(out, fmt.Sprintf("   📝 Description: %s...", truncate(desc, 100)))
			out = append(out, fmt.Sprintf("   ✅ Upvotes: %d", mr.Upvotes))
			out = append(out, fmt.Sprintf("   ❌ Downvotes: %d", mr.Downvotes))
			if len(mr.Assignees) > 0 {
				names := make([]string, 0, len(mr.Assignees))
				for _, a := range mr.Assignees {
					names = append(names, a.Name)
				}
				out = append(out, fmt.Sprintf("   👥 Assignees: %s", strings.Join(names, ", ")))
			}
			if len(mr.Labels) > 0 {
				out = append(out, fmt.Sprintf("   🏷️  Labels: %s", strings.Join(mr.Labels, ", ")))
			}
		}

		out = append(out, fmt.Sprintf("   🔗 URL: %s", mr.WebURL))
		out = append(out, "")
	}

	return strings.Join(out, "\n")
}

func stateEmoji(state string) string {
	switch state {
	case "opened":
		return "🟢"
	case "closed":
		return "🔴"
	default:
		return "🟡"
	}
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
