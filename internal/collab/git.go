// Package collab holds the concrete collaborator implementations behind the
// stage tool interfaces: a repository analyzer reading git history, a doc
// analyst cross-referencing a report document against the working tree, and
// the three data-driven judge personas. All of them are deterministic; the
// same inputs always yield the same evidence and opinions.
package collab

import (
	"context"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"tribunal/internal/docket"
	"tribunal/internal/logging"
	"tribunal/internal/rubric"
)

// commit is one parsed git log entry.
type commit struct {
	Hash    string
	Author  string
	Subject string
}

// conventionalSubject matches the conventional-commit subject prefixes.
var conventionalSubject = regexp.MustCompile(`^(feat|fix|docs|chore|refactor|test|ci|build|perf|style)(\([^)]*\))?!?:`)

// sensitiveFiles are file names and suffixes whose presence in the tree is
// treated as a confirmed security defect.
var sensitiveFiles = []string{".env", "id_rsa", "id_dsa", ".pem", ".p12", "credentials.json", ".npmrc"}

// gitRunner executes a git subcommand in dir and returns its stdout.
type gitRunner func(ctx context.Context, dir string, args ...string) (string, error)

func execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// GitAnalyzer reads the target's commit history and file layout and emits
// one evidence item per criterion, with extra findings for security-tagged
// criteria. It satisfies stage.AnalyzerTool.
type GitAnalyzer struct {
	criteria []rubric.Criterion
	limit    int
	run      gitRunner
	log      *logging.Logger
}

// NewGitAnalyzer creates a GitAnalyzer over the given rubric criteria.
// limit caps how many commits are read from the log.
func NewGitAnalyzer(criteria []rubric.Criterion, limit int, log *logging.Logger) *GitAnalyzer {
	if log == nil {
		log = logging.NopLogger()
	}
	if limit < 1 {
		limit = 200
	}
	return &GitAnalyzer{criteria: criteria, limit: limit, run: execGit, log: log}
}

// Collect reads the git log and tree of target. A repository that cannot be
// read at all is an analyzer failure; individual missing signals only lower
// confidence.
func (g *GitAnalyzer) Collect(ctx context.Context, target string) ([]docket.Evidence, error) {
	out, err := g.run(ctx, target, "log", "-n", strconv.Itoa(g.limit), "--format=%H%x1f%an%x1f%s")
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", target, err)
	}
	commits := parseLog(out)

	authors := commitAuthors(commits)
	conventional := 0
	for _, c := range commits {
		if conventionalSubject.MatchString(c.Subject) {
			conventional++
		}
	}

	confidence := historyConfidence(len(commits), conventional)
	rationale := fmt.Sprintf("%d commits by %d author(s), %d with conventional subjects",
		len(commits), len(authors), conventional)
	g.log.Debug("history read", "target", target, "commits", len(commits), "authors", len(authors))

	var evidence []docket.Evidence
	for _, c := range g.criteria {
		evidence = append(evidence, docket.Evidence{
			CriterionID: c.ID,
			Found:       len(commits) > 0,
			Location:    "git log",
			Rationale:   rationale,
			Confidence:  confidence,
			Payload: map[string]any{
				docket.PayloadCommitAuthors: authors,
				"commit_count":              len(commits),
				"conventional_count":        conventional,
			},
		})

		if c.Tag != rubric.TagSecurity {
			continue
		}
		for _, hit := range scanSensitiveFiles(target) {
			evidence = append(evidence, docket.Evidence{
				CriterionID: c.ID,
				Found:       true,
				Location:    hit,
				Rationale:   "sensitive file committed to the working tree",
				Confidence:  1,
				Payload: map[string]any{
					docket.PayloadSecurityFlaw: true,
				},
			})
		}
	}
	return evidence, nil
}

func parseLog(out string) []commit {
	var commits []commit
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.SplitN(line, "\x1f", 3)
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		commits = append(commits, commit{Hash: parts[0], Author: parts[1], Subject: parts[2]})
	}
	return commits
}

func commitAuthors(commits []commit) []string {
	seen := make(map[string]bool)
	var authors []string
	for _, c := range commits {
		if !seen[c.Author] {
			seen[c.Author] = true
			authors = append(authors, c.Author)
		}
	}
	sort.Strings(authors)
	return authors
}

// historyConfidence scales with history depth and commit hygiene. An empty
// history scores zero; twenty well-formed commits approach full confidence.
func historyConfidence(total, conventional int) float64 {
	if total == 0 {
		return 0
	}
	depth := float64(total) / 20
	if depth > 1 {
		depth = 1
	}
	hygiene := float64(conventional) / float64(total)
	return 0.6*depth + 0.4*hygiene
}

// scanSensitiveFiles walks the target tree looking for committed secrets.
// Results are sorted for deterministic evidence ordering.
func scanSensitiveFiles(target string) []string {
	var hits []string
	filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		name := strings.ToLower(d.Name())
		for _, marker := range sensitiveFiles {
			if name == marker || strings.HasSuffix(name, marker) {
				rel, relErr := filepath.Rel(target, path)
				if relErr != nil {
					rel = path
				}
				hits = append(hits, rel)
				return nil
			}
		}
		return nil
	})
	sort.Strings(hits)
	return hits
}
