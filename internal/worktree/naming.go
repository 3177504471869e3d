package worktree

import "strings"

// Slug turns arbitrary text into a branch-safe component using only
// [a-z0-9-], without leading or trailing dashes.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevDash := false
	for _, r := range strings.TrimSpace(s) {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevDash = false
			continue
		}
		if prevDash {
			continue
		}
		b.WriteByte('-')
		prevDash = true
	}
	return strings.Trim(b.String(), "-")
}

// BranchName returns the deterministic branch for a task.
func BranchName(prefix, taskID string) string {
	slug := Slug(taskID)
	if prefix == "" {
		return slug
	}
	return strings.TrimSuffix(prefix, "/") + "/" + slug
}
