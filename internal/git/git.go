// Package git shells out to git for the commit identity and change
// detection against a base branch.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// HeadRevision returns the current commit hash, which doubles as the
// image tag
func HeadRevision() (string, error) {
	out, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", fmt.Errorf("git returned an empty revision")
	}
	return rev, nil
}

// ShortRevision returns the abbreviated commit hash
func ShortRevision() (string, error) {
	rev, err := HeadRevision()
	if err != nil {
		return "", err
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return rev, nil
}

// ChangeDetector detects files that have changed relative to a base branch
type ChangeDetector struct {
	baseBranch string
}

// NewChangeDetector creates a detector comparing against baseBranch
func NewChangeDetector(baseBranch string) *ChangeDetector {
	if baseBranch == "" {
		baseBranch = "main"
	}
	return &ChangeDetector{baseBranch: baseBranch}
}

// ChangedFiles returns the union of uncommitted changes and commits not in
// the base branch. Falls back from the local branch to origin/<branch> to
// a merge-base, which covers detached-HEAD checkouts on CI runners.
func (cd *ChangeDetector) ChangedFiles() ([]string, error) {
	filesMap := make(map[string]bool)

	collect := func(args ...string) {
		out, err := exec.Command("git", args...).Output()
		if err != nil {
			return
		}
		for _, f := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			if f != "" {
				filesMap[f] = true
			}
		}
	}

	collect("diff", "--name-only")
	collect("diff", "--cached", "--name-only")

	// Committed changes relative to the base branch
	refs := []string{cd.baseBranch, "origin/" + cd.baseBranch}
	found := false
	for _, ref := range refs {
		out, err := exec.Command("git", "diff", "--name-only", ref).Output()
		if err == nil {
			for _, f := range strings.Split(strings.TrimSpace(string(out)), "\n") {
				if f != "" {
					filesMap[f] = true
				}
			}
			found = true
			break
		}
	}
	if !found {
		for _, ref := range refs {
			base, err := exec.Command("git", "merge-base", "HEAD", ref).Output()
			if err != nil {
				continue
			}
			collect("diff", "--name-only", strings.TrimSpace(string(base)))
			break
		}
	}

	files := make([]string, 0, len(filesMap))
	for f := range filesMap {
		files = append(files, f)
	}
	return files, nil
}

// IsPathChanged reports whether any changed file falls under path
func (cd *ChangeDetector) IsPathChanged(path string) (bool, error) {
	files, err := cd.ChangedFiles()
	if err != nil {
		return false, err
	}

	if path == "" || path == "./" {
		return len(files) > 0, nil
	}

	path = strings.TrimSuffix(path, "/")
	for _, file := range files {
		if file == path || strings.HasPrefix(file, path+"/") {
			return true, nil
		}
	}
	return false, nil
}
