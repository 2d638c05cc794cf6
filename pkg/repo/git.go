package repo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitClient clones and updates git repositories.
type GitClient interface {
	// Clone clones url into destDir, checking out branch when it is not empty.
	Clone(ctx context.Context, url, branch, destDir string) error
	// Pull fast-forwards the checkout in dir and returns the new HEAD commit.
	Pull(ctx context.Context, dir string) (string, error)
}

// ShellClient implements GitClient by shelling out to the git command
type ShellClient struct {
	git string
}

// NewShellClient creates a new git client that uses the git command
func NewShellClient() *ShellClient {
	return &ShellClient{git: "git"}
}

// Clone runs git clone.
func (c *ShellClient) Clone(ctx context.Context, url, branch, destDir string) error {
	if err := os.MkdirAll(filepath.Dir(destDir), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	args := []string{"clone"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, destDir)

	if err := c.run(exec.CommandContext(ctx, c.git, args...)); err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	return nil
}

// Pull runs git pull --ff-only in dir.
func (c *ShellClient) Pull(ctx context.Context, dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return "", fmt.Errorf("%s is not a git checkout: %w", dir, err)
	}
	if err := c.run(exec.CommandContext(ctx, c.git, "-C", dir, "pull", "--ff-only")); err != nil {
		return "", fmt.Errorf("git pull failed: %w", err)
	}

	output, err := exec.CommandContext(ctx, c.git, "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// run executes a command and returns an error with its output on failure
func (c *ShellClient) run(cmd *exec.Cmd) error {
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
