package collab

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"tribunal/internal/docket"
	"tribunal/internal/logging"
	"tribunal/internal/rubric"
)

// claimedPath matches backtick-quoted repository paths in a report document,
// e.g. `cmd/server/main.go` or `docs/design.md`.
var claimedPath = regexp.MustCompile("`([\\w./-]+\\.[\\w]+)`")

// DocAnalyst scans a report document for rubric keyword coverage and
// cross-references repository paths the document claims to contain. It
// satisfies stage.AnalyzerTool; the Collect target is the repository the
// document describes.
type DocAnalyst struct {
	docPath  string
	criteria []rubric.Criterion
	maxBytes int64
	log      *logging.Logger
}

// NewDocAnalyst creates a DocAnalyst for the document at docPath. maxBytes
// bounds how much of the document is read.
func NewDocAnalyst(docPath string, criteria []rubric.Criterion, maxBytes int64, log *logging.Logger) *DocAnalyst {
	if log == nil {
		log = logging.NopLogger()
	}
	if maxBytes < 1024 {
		maxBytes = 256 * 1024
	}
	return &DocAnalyst{docPath: docPath, criteria: criteria, maxBytes: maxBytes, log: log}
}

// Collect reads the document and emits, per criterion, a keyword coverage
// item plus a contradiction item for every claimed path the working tree
// does not contain.
func (d *DocAnalyst) Collect(ctx context.Context, target string) ([]docket.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := d.read()
	if err != nil {
		return nil, fmt.Errorf("reading report document: %w", err)
	}
	lines := strings.Split(text, "\n")

	var evidence []docket.Evidence
	for _, c := range d.criteria {
		terms := criterionTerms(c)
		matched, matchedLines := matchLines(lines, terms)

		conf := 0.0
		if len(terms) > 0 {
			conf = float64(len(matched)) / float64(len(terms))
		}
		evidence = append(evidence, docket.Evidence{
			CriterionID: c.ID,
			Found:       len(matched) > 0,
			Location:    d.docPath,
			Rationale:   coverageRationale(c, matched),
			Confidence:  conf,
			Payload: map[string]any{
				"matched_terms": matched,
			},
		})

		// A path claimed on a line discussing this criterion must exist in
		// the tree; a missing one is a contradiction the judges can cite.
		for _, line := range matchedLines {
			for _, m := range claimedPath.FindAllStringSubmatch(line, -1) {
				rel := m[1]
				if _, statErr := os.Stat(filepath.Join(target, rel)); statErr == nil {
					continue
				}
				evidence = append(evidence, docket.Evidence{
					CriterionID: c.ID,
					Found:       false,
					Location:    rel,
					Rationale:   fmt.Sprintf("document claims %s which is absent from the tree", rel),
					Confidence:  0.9,
					Payload: map[string]any{
						"claimed_path": rel,
					},
				})
			}
		}
	}

	d.log.Debug("document scanned", "doc", d.docPath, "criteria", len(d.criteria), "items", len(evidence))
	return evidence, nil
}

func (d *DocAnalyst) read() (string, error) {
	f, err := os.Open(d.docPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, d.maxBytes))
	if err != nil {
		return "", err
	}
	return strings.ToLower(string(data)), nil
}

// criterionTerms derives the search vocabulary for a criterion from its id
// and display name.
func criterionTerms(c rubric.Criterion) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(word string) {
		word = strings.ToLower(strings.TrimSpace(word))
		if len(word) < 3 || seen[word] {
			return
		}
		seen[word] = true
		terms = append(terms, word)
	}
	for _, w := range strings.Split(c.ID, "_") {
		add(w)
	}
	for _, w := range strings.Fields(c.DisplayName) {
		add(w)
	}
	return terms
}

// matchLines returns the terms present in the text and the lines containing
// any of them.
func matchLines(lines, terms []string) (matched []string, matchedLines []string) {
	hit := make(map[string]bool)
	for _, line := range lines {
		lineMatched := false
		for _, term := range terms {
			if strings.Contains(line, term) {
				lineMatched = true
				if !hit[term] {
					hit[term] = true
					matched = append(matched, term)
				}
			}
		}
		if lineMatched {
			matchedLines = append(matchedLines, line)
		}
	}
	return matched, matchedLines
}

func coverageRationale(c rubric.Criterion, matched []string) string {
	if len(matched) == 0 {
		return fmt.Sprintf("document does not discuss %s", c.DisplayName)
	}
	return fmt.Sprintf("document covers %s (terms: %s)", c.DisplayName, strings.Join(matched, ", "))
}
