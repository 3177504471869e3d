package orchestrator

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ShayCichocki/hive/pkg/models"
)

func TestFailureText(t *testing.T) {
	tests := []struct {
		name     string
		run      *models.AgentRun
		wantHead string
		wantTail string
	}{
		{
			name:     "exit code without output",
			run:      &models.AgentRun{Role: models.RoleExecutor, Agent: "fake", Status: models.RunStatusFailed, ExitCode: 2},
			wantHead: "executor fake exited with code 2",
		},
		{
			name:     "cancelled",
			run:      &models.AgentRun{Role: models.RolePlanner, Agent: "fake", Status: models.RunStatusCancelled, ExitCode: 143, ExitSummary: "bye"},
			wantHead: "planner fake was cancelled",
			wantTail: "bye",
		},
		{
			name: "multibyte output cut on a rune boundary",
			run: &models.AgentRun{Role: models.RoleExecutor, Agent: "fake", Status: models.RunStatusFailed, ExitCode: 1,
				ExitSummary: strings.Repeat("é", maxFailureText) + "x"},
			wantHead: "executor fake exited with code 1",
			wantTail: "éx",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := failureText(tt.run)
			if !strings.HasPrefix(got, tt.wantHead) {
				t.Errorf("failureText() = %q, want prefix %q", got, tt.wantHead)
			}
			if !strings.HasSuffix(got, tt.wantTail) {
				t.Errorf("failureText() = %q, want suffix %q", got, tt.wantTail)
			}
			if !utf8.ValidString(got) {
				t.Errorf("failureText() is not valid UTF-8: %q", got)
			}
			if len(got) > len(tt.wantHead)+len(":\n...")+maxFailureText {
				t.Errorf("failureText() length %d exceeds bound", len(got))
			}
		})
	}
}
