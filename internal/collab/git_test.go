package collab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tribunal/internal/docket"
	"tribunal/internal/rubric"
)

func fakeLog(entries ...[3]string) string {
	out := ""
	for _, e := range entries {
		out += e[0] + "\x1f" + e[1] + "\x1f" + e[2] + "\n"
	}
	return out
}

func TestGitAnalyzerCollect(t *testing.T) {
	criteria := []rubric.Criterion{
		{ID: "code_quality", DisplayName: "Code Quality"},
		{ID: "secret_handling", DisplayName: "Secret Handling", Tag: rubric.TagSecurity},
	}

	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(target, ".env"), []byte("API_KEY=x"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	a := NewGitAnalyzer(criteria, 50, nil)
	a.run = func(_ context.Context, dir string, args ...string) (string, error) {
		if dir != target {
			t.Errorf("git dir = %q, want %q", dir, target)
		}
		return fakeLog(
			[3]string{"aaa", "rivera", "feat: add parser"},
			[3]string{"bbb", "chen", "fix: handle empty input"},
			[3]string{"ccc", "rivera", "wip"},
		), nil
	}

	evidence, err := a.Collect(context.Background(), target)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	// One history item per criterion plus one security finding.
	if len(evidence) != 3 {
		t.Fatalf("len(evidence) = %d, want 3", len(evidence))
	}

	hist := evidence[0]
	if hist.CriterionID != "code_quality" || !hist.Found {
		t.Errorf("history evidence = %+v, want found for code_quality", hist)
	}
	authors, _ := hist.Payload[docket.PayloadCommitAuthors].([]string)
	if !reflect.DeepEqual(authors, []string{"chen", "rivera"}) {
		t.Errorf("authors = %v, want sorted unique [chen rivera]", authors)
	}
	if hist.Payload["commit_count"] != 3 || hist.Payload["conventional_count"] != 2 {
		t.Errorf("payload counts = %v", hist.Payload)
	}

	flaw := evidence[2]
	if flag, _ := flaw.Payload[docket.PayloadSecurityFlaw].(bool); !flag {
		t.Errorf("security evidence payload = %v, want confirmed flaw", flaw.Payload)
	}
	if flaw.CriterionID != "secret_handling" || flaw.Location != ".env" {
		t.Errorf("security evidence = %+v, want .env under secret_handling", flaw)
	}
}

func TestGitAnalyzerCollectError(t *testing.T) {
	wantErr := errors.New("not a repository")
	a := NewGitAnalyzer([]rubric.Criterion{{ID: "c"}}, 10, nil)
	a.run = func(context.Context, string, ...string) (string, error) {
		return "", wantErr
	}

	if _, err := a.Collect(context.Background(), "/nowhere"); !errors.Is(err, wantErr) {
		t.Errorf("Collect() error = %v, want %v", err, wantErr)
	}
}

func TestParseLog(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"two entries", fakeLog([3]string{"a", "x", "s"}, [3]string{"b", "y", "t"}), 2},
		{"malformed line skipped", "garbage\n" + fakeLog([3]string{"a", "x", "s"}), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLog(tt.in); len(got) != tt.want {
				t.Errorf("parseLog() = %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestHistoryConfidence(t *testing.T) {
	tests := []struct {
		name         string
		total        int
		conventional int
		want         float64
	}{
		{"empty history", 0, 0, 0},
		{"deep clean history", 40, 40, 1.0},
		{"deep unconventional", 20, 0, 0.6},
		{"shallow clean", 10, 10, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := historyConfidence(tt.total, tt.conventional)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("historyConfidence(%d, %d) = %v, want %v", tt.total, tt.conventional, got, tt.want)
			}
		})
	}
}

func TestScanSensitiveFilesSkipsGitDir(t *testing.T) {
	target := t.TempDir()
	if err := os.MkdirAll(filepath.Join(target, ".git"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(target, ".git", "server.pem"), nil, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(target, "deploy.pem"), nil, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got := scanSensitiveFiles(target)
	if !reflect.DeepEqual(got, []string{"deploy.pem"}) {
		t.Errorf("scanSensitiveFiles() = %v, want [deploy.pem]", got)
	}
}
