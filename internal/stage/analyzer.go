package stage

import (
	"context"
	"fmt"

	"tribunal/internal/docket"
	"tribunal/internal/logging"
	"tribunal/internal/state"
)

// Analyzer adapts an AnalyzerTool to the Stage contract. A tool error marks
// the stage failed and contributes nothing; affected criteria simply have no
// evidence from this source, which the aggregator records as degraded
// confidence. Evidence that fails validation is dropped individually and
// degrades the stage rather than failing it.
type Analyzer struct {
	id     string
	target string
	tool   AnalyzerTool
	log    *logging.Logger
}

// NewAnalyzer creates an analyzer stage around the given tool.
func NewAnalyzer(id, target string, tool AnalyzerTool, log *logging.Logger) *Analyzer {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Analyzer{id: id, target: target, tool: tool, log: log.WithStage(id)}
}

// ID returns the stage identifier, which doubles as the evidence source id.
func (a *Analyzer) ID() string { return a.id }

// Run collects evidence from the tool and returns it as a delta.
func (a *Analyzer) Run(ctx context.Context, _ state.Snapshot) (state.Delta, Status) {
	items, err := a.tool.Collect(ctx, a.target)
	if err != nil {
		a.log.Warn("analyzer failed", "error", err)
		return state.Delta{}, Failed(err.Error())
	}

	valid := make([]docket.Evidence, 0, len(items))
	dropped := 0
	for _, ev := range items {
		// The source id is owned by the stage, not the tool.
		ev.SourceID = a.id
		if verr := ev.Validate(); verr != nil {
			a.log.Warn("dropping invalid evidence", "error", verr)
			dropped++
			continue
		}
		valid = append(valid, ev)
	}

	a.log.Debug("analyzer completed", "evidence", len(valid), "dropped", dropped)

	delta := state.Delta{Evidence: valid}
	if dropped > 0 {
		return delta, Degraded(fmt.Sprintf("%d invalid evidence items dropped", dropped))
	}
	return delta, Ok()
}
