// Package buildinfo resolves source revision metadata that gets stamped
// into builds and reports.
package buildinfo

import (
	"log/slog"

	git "github.com/go-git/go-git/v5"
)

// Version is the tool's own version, overridden at link time.
var Version = "dev"

// CommitEnv is the environment variable handed to workspace builds so the
// kernel can embed the revision it was built from.
const CommitEnv = "ESQUE_BUILD_COMMIT"

// shortHashLen truncates commit hashes for logs and build stamps.
const shortHashLen = 12

// Commit returns the abbreviated HEAD commit hash of the repository at
// dir, or an empty string when dir is not a usable git repository.
func Commit(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		slog.Debug("no git repository for build stamp", "path", dir, "error", err)
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		slog.Debug("no HEAD for build stamp", "path", dir, "error", err)
		return ""
	}
	hash := ref.Hash().String()
	if len(hash) > shortHashLen {
		hash = hash[:shortHashLen]
	}
	return hash
}

// CommitEnvEntry returns the KEY=VALUE pair for workspace builds, or an
// empty string when no commit is resolvable.
func CommitEnvEntry(dir string) string {
	commit := Commit(dir)
	if commit == "" {
		return ""
	}
	return CommitEnv + "=" + commit
}
