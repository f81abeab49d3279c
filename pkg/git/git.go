// Package git reads repository metadata of the project the agent works on.
// it never modifies the repository, commits are the agent's business.
package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepo is returned when the directory is not inside a git repository.
var ErrNotRepo = errors.New("not a git repository")

// Info describes the state of a repository.
type Info struct {
	Branch  string // current branch, empty for detached HEAD
	Commit  string // short hash of HEAD, empty when there are no commits
	Changed int    // files with uncommitted changes, untracked included
}

// Describe returns Info for the repository containing dir.
func Describe(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Info{}, ErrNotRepo
		}
		return Info{}, fmt.Errorf("open repository: %w", err)
	}

	var info Info
	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// no commits yet, HEAD still names the unborn branch
		ref, refErr := repo.Storer.Reference(plumbing.HEAD)
		if refErr != nil {
			return Info{}, fmt.Errorf("read HEAD: %w", refErr)
		}
		if ref.Type() == plumbing.SymbolicReference {
			info.Branch = ref.Target().Short()
		}
	case err != nil:
		return Info{}, fmt.Errorf("read HEAD: %w", err)
	default:
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
		info.Commit = head.Hash().String()[:7]
	}

	wt, err := repo.Worktree()
	if err != nil {
		return Info{}, fmt.Errorf("get worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return Info{}, fmt.Errorf("get status: %w", err)
	}
	for _, fs := range st {
		if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
			info.Changed++
		}
	}
	return info, nil
}

// CurrentBranch returns the branch checked out in dir, or empty string when dir is not
// a repository or HEAD is detached.
func CurrentBranch(dir string) string {
	info, err := Describe(dir)
	if err != nil {
		return ""
	}
	return info.Branch
}
