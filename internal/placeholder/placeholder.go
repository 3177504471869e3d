// Package placeholder expands {{name}} references in command templates.
package placeholder

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ShayCichocki/hive/internal/apperr"
)

// Common variable names.
const (
	TaskID       = "task_id"
	Title        = "title"
	Description  = "description"
	WorktreePath = "worktree_path"
	PlanPath     = "plan_path"
	Branch       = "branch"
	BaseBranch   = "base_branch"
	Prompt       = "prompt"
	RunID        = "run_id"
	RepoRoot     = "repo_root"
)

var pattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Vars maps placeholder names to values.
type Vars map[string]string

// Expand substitutes every placeholder in s. A reference to a name that is
// absent or empty fails with a ConfigError naming key.
func (v Vars) Expand(key, s string) (string, error) {
	var missing []string
	out := pattern.ReplaceAllStringFunc(s, func(m string) string {
		name := pattern.FindStringSubmatch(m)[1]
		val, ok := v[name]
		if !ok || val == "" {
			missing = append(missing, name)
			return m
		}
		return val
	})
	if len(missing) > 0 {
		return "", &apperr.ConfigError{
			Key: key,
			Msg: "unresolved placeholder " + strings.Join(dedupe(missing), ", "),
		}
	}
	return out, nil
}

// ExpandAll expands each element of args.
func (v Vars) ExpandAll(key string, args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		e, err := v.Expand(key, a)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ExpandEnv expands env values and returns KEY=value pairs sorted by key.
func (v Vars) ExpandEnv(key string, env map[string]string) ([]string, error) {
	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]string, 0, len(env))
	for _, k := range names {
		e, err := v.Expand(key+".env."+k, env[k])
		if err != nil {
			return nil, err
		}
		out = append(out, k+"="+e)
	}
	return out, nil
}

// Names returns the placeholder names referenced by s, in order of first use.
func Names(s string) []string {
	var names []string
	for _, m := range pattern.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return dedupe(names)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
