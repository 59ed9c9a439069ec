package engine

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"tribunal/internal/docket"
	"tribunal/internal/errors"
	"tribunal/internal/event"
	"tribunal/internal/rubric"
	"tribunal/internal/stage"
	"tribunal/internal/state"
)

func testRubric(ids ...string) *rubric.Rubric {
	r := &rubric.Rubric{Rules: rubric.DefaultRules()}
	for _, id := range ids {
		r.Criteria = append(r.Criteria, rubric.Criterion{
			ID:          id,
			DisplayName: id,
			Weight:      1,
		})
	}
	return r
}

// fakeStage is a scriptable stage for scheduler tests.
type fakeStage struct {
	id  string
	run func(ctx context.Context, snap state.Snapshot) (state.Delta, stage.Status)
}

func (f *fakeStage) ID() string { return f.id }

func (f *fakeStage) Run(ctx context.Context, snap state.Snapshot) (state.Delta, stage.Status) {
	return f.run(ctx, snap)
}

// fakeCollector returns canned evidence for one source.
type fakeCollector struct {
	items []docket.Evidence
}

func (f *fakeCollector) Collect(_ context.Context, _ string) ([]docket.Evidence, error) {
	return f.items, nil
}

// fixedJudge returns the same score for every criterion.
type fixedJudge struct {
	score int
}

func (f *fixedJudge) Judge(_ context.Context, bundle docket.EvidenceBundle, persona docket.Persona) (docket.JudicialOpinion, error) {
	return docket.JudicialOpinion{
		JudgeID:     string(persona),
		CriterionID: bundle.CriterionID,
		Score:       f.score,
		Argument:    "fixed verdict for testing",
	}, nil
}

func TestNewValidation(t *testing.T) {
	analyzer := stage.NewAnalyzer("git", ".", &fakeCollector{}, nil)
	evaluator := stage.NewEvaluator("prosecutor", docket.PersonaProsecutor,
		[]string{"code_quality"}, &fixedJudge{score: 5}, stage.DefaultRetryConfig(), nil, nil)

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{
			name: "nil rubric",
			cfg:  Config{Analyzers: []stage.Stage{analyzer}, Evaluators: []stage.Stage{evaluator}},
			want: errors.ErrRubricEmpty,
		},
		{
			name: "empty rubric",
			cfg: Config{
				Rubric:     testRubric(),
				Analyzers:  []stage.Stage{analyzer},
				Evaluators: []stage.Stage{evaluator},
			},
			want: errors.ErrRubricEmpty,
		},
		{
			name: "no analyzers",
			cfg: Config{
				Rubric:     testRubric("code_quality"),
				Evaluators: []stage.Stage{evaluator},
			},
			want: errors.ErrNoAnalyzers,
		},
		{
			name: "no evaluators",
			cfg: Config{
				Rubric:    testRubric("code_quality"),
				Analyzers: []stage.Stage{analyzer},
			},
			want: errors.ErrNoEvaluators,
		},
		{
			name: "duplicate stage id",
			cfg: Config{
				Rubric:     testRubric("code_quality"),
				Analyzers:  []stage.Stage{analyzer, analyzer},
				Evaluators: []stage.Stage{evaluator},
			},
			want: errors.ErrDuplicateStage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
			if !errors.IsStructural(err) {
				t.Errorf("New() error = %v, want structural", err)
			}
		})
	}
}

// TestBarrierOrdering launches analyzers with randomized delays and checks
// that the evidence aggregator never observes a partial analysis tier, and
// likewise for evaluators and the opinions aggregator.
func TestBarrierOrdering(t *testing.T) {
	const trials = 8

	for trial := 0; trial < trials; trial++ {
		var analyzersDone, evaluatorsDone atomic.Int32
		rng := rand.New(rand.NewSource(int64(trial)))
		delays := []time.Duration{
			time.Duration(rng.Intn(20)) * time.Millisecond,
			time.Duration(rng.Intn(20)) * time.Millisecond,
			time.Duration(rng.Intn(20)) * time.Millisecond,
		}

		analyzers := make([]stage.Stage, 3)
		for i := range analyzers {
			d := delays[i]
			analyzers[i] = &fakeStage{
				id: []string{"git", "docs", "vision"}[i],
				run: func(ctx context.Context, _ state.Snapshot) (state.Delta, stage.Status) {
					time.Sleep(d)
					analyzersDone.Add(1)
					return state.Delta{}, stage.Ok()
				},
			}
		}

		evaluators := make([]stage.Stage, 3)
		for i, p := range docket.Personas() {
			d := delays[i]
			evaluators[i] = &fakeStage{
				id: string(p),
				run: func(ctx context.Context, _ state.Snapshot) (state.Delta, stage.Status) {
					if got := analyzersDone.Load(); got != 3 {
						t.Errorf("evaluator started with %d/3 analyzers done", got)
					}
					time.Sleep(d)
					evaluatorsDone.Add(1)
					return state.Delta{}, stage.Ok()
				},
			}
		}

		cfg := Config{
			Rubric:     testRubric("code_quality"),
			Analyzers:  analyzers,
			Evaluators: evaluators,
			EvidenceAgg: &fakeStage{
				id: "evidence_aggregator",
				run: func(ctx context.Context, _ state.Snapshot) (state.Delta, stage.Status) {
					if got := analyzersDone.Load(); got != 3 {
						t.Errorf("evidence aggregator started with %d/3 analyzers done", got)
					}
					return state.Delta{}, stage.Ok()
				},
			},
			OpinionsAgg: &fakeStage{
				id: "opinions_aggregator",
				run: func(ctx context.Context, _ state.Snapshot) (state.Delta, stage.Status) {
					if got := evaluatorsDone.Load(); got != 3 {
						t.Errorf("opinions aggregator started with %d/3 evaluators done", got)
					}
					return state.Delta{}, stage.Ok()
				},
			},
			Synthesis: &fakeStage{
				id: "synthesis",
				run: func(ctx context.Context, _ state.Snapshot) (state.Delta, stage.Status) {
					return state.Delta{}, stage.Ok()
				},
			},
		}

		eng, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, err := eng.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}
}

// TestRunPartialCoverage is the end-to-end degraded path: one analyzer
// contributes nothing, so the bundle confidence averages over all sources
// and the run completes degraded with a valid verdict.
func TestRunPartialCoverage(t *testing.T) {
	const criterion = "code_quality"

	analyzers := []stage.Stage{
		stage.NewAnalyzer("git", ".", &fakeCollector{items: []docket.Evidence{
			{CriterionID: criterion, Found: true, Confidence: 0.9, Rationale: "commits present"},
		}}, nil),
		stage.NewAnalyzer("docs", ".", &fakeCollector{items: []docket.Evidence{
			{CriterionID: criterion, Found: true, Confidence: 0.7, Rationale: "readme covers design"},
		}}, nil),
		stage.NewAnalyzer("vision", ".", &fakeCollector{}, nil),
	}

	scores := map[docket.Persona]int{
		docket.PersonaProsecutor: 8,
		docket.PersonaDefense:    7,
		docket.PersonaTechLead:   8,
	}
	var evaluators []stage.Stage
	for _, p := range docket.Personas() {
		evaluators = append(evaluators, stage.NewEvaluator(
			string(p), p, []string{criterion}, &fixedJudge{score: scores[p]},
			stage.DefaultRetryConfig(), nil, nil))
	}

	bus := event.NewBus()
	var tiers []string
	bus.Subscribe(event.TypeTierCompleted, func(e event.Event) {
		tiers = append(tiers, e.(event.TierCompletedEvent).Tier)
	})

	eng, err := New(Config{
		Rubric:     testRubric(criterion),
		Target:     ".",
		Analyzers:  analyzers,
		Evaluators: evaluators,
		Bus:        bus,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	report, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !report.Degraded {
		t.Error("report.Degraded = false, want true after missing analyzer coverage")
	}
	if len(report.Criteria) != 1 {
		t.Fatalf("len(report.Criteria) = %d, want 1", len(report.Criteria))
	}

	result := report.Criteria[0]
	if result.FinalScore != 4 {
		t.Errorf("FinalScore = %d, want 4", result.FinalScore)
	}
	if result.Dissent {
		t.Error("Dissent = true, want false for scores within threshold")
	}
	if len(result.Opinions) != 3 {
		t.Errorf("len(Opinions) = %d, want 3", len(result.Opinions))
	}
	if report.OverallScore != 4 {
		t.Errorf("OverallScore = %v, want 4", report.OverallScore)
	}
	if report.RunID != eng.RunID() {
		t.Errorf("RunID = %q, want %q", report.RunID, eng.RunID())
	}

	if len(tiers) != 2 || tiers[0] != "analysis" || tiers[1] != "evaluation" {
		t.Errorf("tier completions = %v, want [analysis evaluation]", tiers)
	}
}

func TestRunBundleConfidence(t *testing.T) {
	const criterion = "code_quality"

	analyzers := []stage.Stage{
		stage.NewAnalyzer("git", ".", &fakeCollector{items: []docket.Evidence{
			{CriterionID: criterion, Found: true, Confidence: 0.9, Rationale: "r"},
		}}, nil),
		stage.NewAnalyzer("docs", ".", &fakeCollector{items: []docket.Evidence{
			{CriterionID: criterion, Found: true, Confidence: 0.7, Rationale: "r"},
		}}, nil),
		stage.NewAnalyzer("vision", ".", &fakeCollector{}, nil),
	}

	var snapshot docket.EvidenceBundle
	captured := false

	eng, err := New(Config{
		Rubric:    testRubric(criterion),
		Analyzers: analyzers,
		Evaluators: []stage.Stage{&fakeStage{
			id: "prosecutor",
			run: func(ctx context.Context, snap state.Snapshot) (state.Delta, stage.Status) {
				if b, ok := snap.EvidenceBundles[criterion]; ok {
					snapshot = b
					captured = true
				}
				return state.Delta{}, stage.Ok()
			},
		}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !captured {
		t.Fatal("evaluator ran without an evidence bundle for the criterion")
	}
	if want := (0.9 + 0.7) / 3.0; math.Abs(snapshot.Confidence-want) > 1e-9 {
		t.Errorf("bundle confidence = %v, want %v", snapshot.Confidence, want)
	}
	if !snapshot.Degraded {
		t.Error("bundle.Degraded = false, want true with a silent source")
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	blocking := &fakeStage{
		id: "git",
		run: func(ctx context.Context, _ state.Snapshot) (state.Delta, stage.Status) {
			<-ctx.Done()
			return state.Delta{}, stage.Failed("cancelled")
		},
	}

	eng, err := New(Config{
		Rubric:    testRubric("code_quality"),
		Analyzers: []stage.Stage{blocking},
		Evaluators: []stage.Stage{&fakeStage{
			id: "prosecutor",
			run: func(ctx context.Context, _ state.Snapshot) (state.Delta, stage.Status) {
				return state.Delta{}, stage.Ok()
			},
		}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	report, err := eng.Run(ctx)
	if err == nil {
		t.Fatal("Run() error = nil, want cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if report != nil {
		t.Errorf("Run() report = %+v, want nil on cancellation", report)
	}
}

func TestRunStageTimeout(t *testing.T) {
	slow := &fakeStage{
		id: "git",
		run: func(ctx context.Context, _ state.Snapshot) (state.Delta, stage.Status) {
			<-ctx.Done()
			return state.Delta{}, stage.Ok()
		},
	}

	bus := event.NewBus()
	statuses := map[string]string{}
	bus.Subscribe(event.TypeStageCompleted, func(e event.Event) {
		ev := e.(event.StageCompletedEvent)
		statuses[ev.StageID] = ev.Status
	})

	eng, err := New(Config{
		Rubric:    testRubric("code_quality"),
		Analyzers: []stage.Stage{slow},
		Evaluators: []stage.Stage{&fakeStage{
			id: "prosecutor",
			run: func(ctx context.Context, _ state.Snapshot) (state.Delta, stage.Status) {
				return state.Delta{}, stage.Ok()
			},
		}},
		Bus:          bus,
		StageTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	report, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.Degraded {
		t.Error("report.Degraded = false, want true after a stage timeout")
	}
	if statuses["git"] != stage.CodeFailed.String() {
		t.Errorf("git stage status = %q, want %q", statuses["git"], stage.CodeFailed.String())
	}
}
