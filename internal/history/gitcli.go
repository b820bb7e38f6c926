package history

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// GitCLI reads history by running the git binary inside the vault.
type GitCLI struct {
	root   string
	binary string
}

// NewGitCLI creates a provider that runs `git log` in root.
func NewGitCLI(root string) *GitCLI {
	return &GitCLI{root: root, binary: "git"}
}

// Lookup implements Provider.
//
// It runs `git log --format=%aI --reverse -- <path>`, so the first line is the
// author date of the creating commit and the last line that of the latest one.
func (g *GitCLI) Lookup(ctx context.Context, relPath string) (Revision, error) {
	cmd := exec.CommandContext(ctx, g.binary, "log", "--format=%aI", "--reverse", "--", relPath)
	cmd.Dir = g.root

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return Revision{}, fmt.Errorf("git log %s: %w", relPath, err)
		}
		return Revision{}, fmt.Errorf("git log %s: %w: %s", relPath, err, msg)
	}

	times, err := parseLogDates(output)
	if err != nil {
		return Revision{}, fmt.Errorf("git log %s: %w", relPath, err)
	}

	rev, err := fromTimes(times)
	if err != nil {
		return Revision{}, fmt.Errorf("%s: %w", relPath, err)
	}
	return rev, nil
}

// parseLogDates parses one strict ISO-8601 date per line, skipping blanks.
func parseLogDates(output []byte) ([]time.Time, error) {
	var times []time.Time

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		t, err := time.Parse(time.RFC3339, line)
		if err != nil {
			return nil, fmt.Errorf("parsing commit date %q: %w", line, err)
		}
		times = append(times, t)
	}

	return times, scanner.Err()
}
