package buildinfo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// helper to create a repo with one commit, returning its full hash.
func initRepoWithCommit(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kernel.rs"), []byte("fn main() {}\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := wt.Add("kernel.rs"); err != nil {
		t.Fatalf("add: %v", err)
	}
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

func TestCommitShortHash(t *testing.T) {
	dir := t.TempDir()
	full := initRepoWithCommit(t, dir)

	got := Commit(dir)
	if len(got) != shortHashLen {
		t.Fatalf("Commit() = %q, want %d chars", got, shortHashLen)
	}
	if !strings.HasPrefix(full, got) {
		t.Errorf("Commit() = %q not a prefix of HEAD %q", got, full)
	}
}

func TestCommitNonRepo(t *testing.T) {
	if got := Commit(t.TempDir()); got != "" {
		t.Errorf("Commit() = %q, want empty for non-repository", got)
	}
}

func TestCommitEnvEntry(t *testing.T) {
	dir := t.TempDir()
	initRepoWithCommit(t, dir)

	entry := CommitEnvEntry(dir)
	if !strings.HasPrefix(entry, CommitEnv+"=") {
		t.Fatalf("entry = %q, want %s=<hash>", entry, CommitEnv)
	}
	if got := CommitEnvEntry(t.TempDir()); got != "" {
		t.Errorf("entry for non-repo = %q, want empty", got)
	}
}
