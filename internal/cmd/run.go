package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tribunal/internal/collab"
	"tribunal/internal/config"
	"tribunal/internal/docket"
	"tribunal/internal/engine"
	"tribunal/internal/event"
	"tribunal/internal/logging"
	"tribunal/internal/report"
	"tribunal/internal/rubric"
	"tribunal/internal/stage"
	"tribunal/internal/tui"
	"tribunal/internal/verdict"
)

var (
	runDocPath    string
	runRubricPath string
	runOutPath    string
	runTUI        bool
)

var runCmd = &cobra.Command{
	Use:   "run <target>",
	Short: "Audit a project working tree against a rubric",
	Long: `Run executes one audit pass over the target working tree: the
repository analyzer and doc analyst collect evidence concurrently, the three
judge personas score every rubric criterion, and the rule engine synthesizes
the final report.

The command exits zero whenever a report is produced, even if coverage was
degraded; only structural failures (bad rubric, unreadable target) exit
non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		rep, err := executeAudit(cmd.Context(), cfg, auditRequest{
			Target:     args[0],
			RubricPath: runRubricPath,
			DocPath:    runDocPath,
			OutPath:    runOutPath,
			UseTUI:     runTUI || cfg.TUI.Enabled,
		})
		if err != nil {
			return err
		}
		return emit(cmd, cfg, rep, runOutPath)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDocPath, "doc", "", "report document to cross-reference against the tree")
	runCmd.Flags().StringVar(&runRubricPath, "rubric", "rubric.yaml", "rubric file (YAML or JSON)")
	runCmd.Flags().StringVar(&runOutPath, "out", "", "write the machine-readable verdict JSON to this path")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "show live stage progress while the audit runs")
}

// auditRequest carries one audit invocation's inputs.
type auditRequest struct {
	Target     string
	RubricPath string
	DocPath    string
	OutPath    string
	UseTUI     bool
}

// executeAudit wires the collaborators into an engine and runs it once.
// Shared by run and watch.
func executeAudit(ctx context.Context, cfg *config.Config, req auditRequest) (*docket.AuditReport, error) {
	r, err := rubric.Load(req.RubricPath)
	if err != nil {
		return nil, err
	}

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		log, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		defer log.Close()
	}

	analyzers := []stage.Stage{
		stage.NewAnalyzer("repo_investigator", req.Target,
			collab.NewGitAnalyzer(r.Criteria, cfg.Analysis.GitHistoryLimit, log), log),
	}
	if req.DocPath != "" {
		analyzers = append(analyzers, stage.NewAnalyzer("doc_analyst", req.Target,
			collab.NewDocAnalyst(req.DocPath, r.Criteria, cfg.Analysis.MaxDocBytes, log), log))
	}

	retry := stage.RetryConfig{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: cfg.Retry.Backoff()}
	var evaluators []stage.Stage
	for _, p := range docket.Personas() {
		evaluators = append(evaluators, stage.NewEvaluator(
			string(p), p, r.IDs(), collab.NewPersonaJudge(p), retry, nil, log))
	}

	bus := event.NewBus()
	eng, err := engine.New(engine.Config{
		Rubric:       r,
		Target:       req.Target,
		Analyzers:    analyzers,
		Evaluators:   evaluators,
		Bus:          bus,
		Logger:       log,
		StageTimeout: cfg.Engine.StageTimeout(),
		RunTimeout:   cfg.Engine.RunTimeout(),
		Verdict: verdict.Config{
			VarianceThreshold: cfg.Synthesis.VarianceThreshold,
			ScoreDivisor:      cfg.Synthesis.ScoreDivisor,
			SecurityCap:       cfg.Synthesis.SecurityCap,
			CollaborationCap:  cfg.Synthesis.CollaborationCap,
			TechLeadWeight:    float64(cfg.Synthesis.TechLeadWeight),
		},
	})
	if err != nil {
		return nil, err
	}

	if !req.UseTUI {
		return eng.Run(ctx)
	}

	events := tui.Attach(bus)
	done := make(chan struct{})
	var rep *docket.AuditReport
	var runErr error
	go func() {
		defer close(done)
		rep, runErr = eng.Run(ctx)
	}()

	if err := tui.Run(events); err != nil {
		return nil, err
	}
	<-done
	return rep, runErr
}

// emit writes the report in the configured formats.
func emit(cmd *cobra.Command, cfg *config.Config, rep *docket.AuditReport, outPath string) error {
	switch cfg.Report.Format {
	case "json":
		// Markdown suppressed; the styled summary still prints below.
	default:
		fmt.Fprintln(cmd.OutOrStdout(), report.Markdown(rep))
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Summary(rep))

	if outPath == "" && cfg.Report.Format != "markdown" {
		if err := os.MkdirAll(cfg.Report.OutputDir, 0o755); err != nil {
			return err
		}
		outPath = filepath.Join(cfg.Report.OutputDir, fmt.Sprintf("verdict-%s.json", rep.RunID))
	}
	if outPath != "" {
		if err := report.WriteJSON(rep, outPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "verdict written to %s\n", outPath)
	}
	return nil
}
