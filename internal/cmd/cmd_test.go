package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestCommandTree(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "rubric", "watch"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestRunFlags(t *testing.T) {
	for _, flag := range []string{"doc", "rubric", "out", "tui"} {
		if runCmd.Flags().Lookup(flag) == nil {
			t.Errorf("run command missing --%s flag", flag)
		}
	}
}

func TestExecutePropagatesContext(t *testing.T) {
	// Interrupt handling hangs off the context main passes in; commands must
	// see that context, not a detached background one.
	var got context.Context
	check := &cobra.Command{
		Use: "ctxcheck",
		RunE: func(cmd *cobra.Command, _ []string) error {
			got = cmd.Context()
			return nil
		},
	}
	rootCmd.AddCommand(check)
	defer rootCmd.RemoveCommand(check)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rootCmd.SetArgs([]string{"ctxcheck"})
	defer rootCmd.SetArgs(nil)

	if err := Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got == nil || got.Err() == nil {
		t.Error("command did not receive the cancelled caller context")
	}
}

func TestRubricValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rubric.yaml")
	content := `criteria:
  - id: code_quality
    display_name: Code Quality
  - id: system_design
    display_name: System Design
    tag: architecture
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var out bytes.Buffer
	rubricValidateCmd.SetOut(&out)
	if err := rubricValidateCmd.RunE(rubricValidateCmd, []string{path}); err != nil {
		t.Fatalf("rubric validate error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "2 criteria") {
		t.Errorf("output = %q, want criterion count", got)
	}
	if !strings.Contains(got, "system_design") || !strings.Contains(got, "[architecture]") {
		t.Errorf("output = %q, want tagged criterion listed", got)
	}
}

func TestRubricValidateRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rubric.yaml")
	content := `criteria:
  - id: code_quality
  - id: code_quality
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := rubricValidateCmd.RunE(rubricValidateCmd, []string{path}); err == nil {
		t.Error("rubric validate error = nil, want duplicate id failure")
	}
}
