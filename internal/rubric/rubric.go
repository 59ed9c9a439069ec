// Package rubric loads and validates the externally supplied audit rubric.
// The rubric drives both analysis targeting (which criteria analyzers tag
// evidence with) and synthesis weighting (criterion tags, rule toggles).
//
// Rubrics are read from YAML or JSON files. A rubric with no criteria or
// with duplicate criterion ids is a structural failure: the run aborts
// before any stage executes.
package rubric

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tribunal/internal/errors"
)

// TagArchitecture marks criteria whose synthesis weights the TechLead
// opinion double.
const TagArchitecture = "architecture"

// TagSecurity marks criteria the repository analyzer scans for sensitive
// files. Confirmed findings feed the security override during synthesis.
const TagSecurity = "security"

// Criterion is one rubric dimension. The AimFor/Avoid/NextStep texts feed
// the per-criterion remediation section of the report.
type Criterion struct {
	ID          string  `yaml:"id" json:"id"`
	DisplayName string  `yaml:"display_name" json:"display_name"`
	Tag         string  `yaml:"tag,omitempty" json:"tag,omitempty"`
	Weight      float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	AimFor      string  `yaml:"aim_for,omitempty" json:"aim_for,omitempty"`
	Avoid       string  `yaml:"avoid,omitempty" json:"avoid,omitempty"`
	NextStep    string  `yaml:"next_step,omitempty" json:"next_step,omitempty"`
}

// Rules holds per-rubric toggles for the synthesis rules. The deterministic
// rules default on; only the collaboration override defaults off. Load fills
// absent toggles from DefaultRules, so a rubric that never mentions
// synthesis_rules still runs the full rule list.
type Rules struct {
	SecurityOverride      bool `yaml:"security_override" json:"security_override"`
	FactSupremacy         bool `yaml:"fact_supremacy" json:"fact_supremacy"`
	FunctionalityWeight   bool `yaml:"functionality_weight" json:"functionality_weight"`
	CollaborationOverride bool `yaml:"collaboration_override" json:"collaboration_override"`
}

// Rubric is an ordered list of criteria plus synthesis rule toggles.
type Rubric struct {
	Criteria []Criterion `yaml:"criteria" json:"criteria"`
	Rules    Rules       `yaml:"synthesis_rules" json:"synthesis_rules"`
}

// DefaultRules enables every deterministic rule except the collaboration
// override, matching the documented rule order.
func DefaultRules() Rules {
	return Rules{
		SecurityOverride:    true,
		FactSupremacy:       true,
		FunctionalityWeight: true,
	}
}

// rubricDoc is the decode shape of a rubric file. Rule toggles decode as
// pointers so an absent toggle falls back to its default while an explicit
// false still disables the rule.
type rubricDoc struct {
	Criteria []Criterion `yaml:"criteria" json:"criteria"`
	Rules    *rulesDoc   `yaml:"synthesis_rules" json:"synthesis_rules"`
}

type rulesDoc struct {
	SecurityOverride      *bool `yaml:"security_override" json:"security_override"`
	FactSupremacy         *bool `yaml:"fact_supremacy" json:"fact_supremacy"`
	FunctionalityWeight   *bool `yaml:"functionality_weight" json:"functionality_weight"`
	CollaborationOverride *bool `yaml:"collaboration_override" json:"collaboration_override"`
}

// resolve overlays the file's explicit toggles onto the defaults.
func (d *rulesDoc) resolve() Rules {
	r := DefaultRules()
	if d == nil {
		return r
	}
	if d.SecurityOverride != nil {
		r.SecurityOverride = *d.SecurityOverride
	}
	if d.FactSupremacy != nil {
		r.FactSupremacy = *d.FactSupremacy
	}
	if d.FunctionalityWeight != nil {
		r.FunctionalityWeight = *d.FunctionalityWeight
	}
	if d.CollaborationOverride != nil {
		r.CollaborationOverride = *d.CollaborationOverride
	}
	return r
}

// Load reads a rubric from a YAML or JSON file, chosen by extension, and
// validates it. Any failure is structural.
func Load(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStructuralError("rubric.Load", err)
	}

	var doc rubricDoc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.NewStructuralError("rubric.Load", fmt.Errorf("parsing %s: %w", path, err))
	}

	r := Rubric{Criteria: doc.Criteria, Rules: doc.Rules.resolve()}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks structural invariants: at least one criterion, no blank
// or duplicate ids.
func (r *Rubric) Validate() error {
	if len(r.Criteria) == 0 {
		return errors.NewStructuralError("rubric.Validate", errors.ErrRubricEmpty)
	}

	seen := make(map[string]struct{}, len(r.Criteria))
	for i, c := range r.Criteria {
		if strings.TrimSpace(c.ID) == "" {
			return errors.NewStructuralError("rubric.Validate",
				fmt.Errorf("criterion %d has an empty id", i))
		}
		if _, dup := seen[c.ID]; dup {
			return errors.NewStructuralError("rubric.Validate",
				fmt.Errorf("%w: %q", errors.ErrDuplicateCriterion, c.ID))
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// Criterion returns the criterion with the given id, if present.
func (r *Rubric) Criterion(id string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}

// IDs returns the criterion ids in rubric order.
func (r *Rubric) IDs() []string {
	ids := make([]string, len(r.Criteria))
	for i, c := range r.Criteria {
		ids[i] = c.ID
	}
	return ids
}

// DisplayName returns the display name for a criterion id, falling back to
// a title-cased form of the id for unknown criteria.
func (r *Rubric) DisplayName(id string) string {
	if c, ok := r.Criterion(id); ok && c.DisplayName != "" {
		return c.DisplayName
	}
	words := strings.Split(strings.ReplaceAll(id, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Remediation builds the remediation text for a criterion from its rubric
// guidance fields.
func (c Criterion) Remediation() string {
	var b strings.Builder
	fmt.Fprintf(&b, "To improve %s:\n", c.DisplayName)
	if c.AimFor != "" {
		fmt.Fprintf(&b, "- Aim for: %s.\n", c.AimFor)
	}
	if c.Avoid != "" {
		fmt.Fprintf(&b, "- Avoid: %s.\n", c.Avoid)
	}
	if c.NextStep != "" {
		fmt.Fprintf(&b, "- Next step: %s.\n", c.NextStep)
	}
	return b.String()
}
