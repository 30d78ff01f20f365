// Package gitstat lists files the working tree has changed, via
// git's porcelain status output. Listing changed files is a gated
// action: the CLI authorizes an approval before calling in.
package gitstat

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ChangedFiles runs `git status --porcelain` in dir and returns the
// changed paths.
func ChangedFiles(ctx context.Context, dir string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("git status: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("git status: %w", err)
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) < 4 {
			continue
		}
		// Porcelain format: two status columns, a space, then the path.
		// Renames and copies carry both paths as "old -> new".
		path := strings.TrimSpace(line[3:])
		if old, renamed, ok := strings.Cut(path, " -> "); ok {
			files = append(files, old, renamed)
			continue
		}
		files = append(files, path)
	}
	return files, nil
}
