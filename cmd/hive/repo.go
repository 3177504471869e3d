package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/hive/internal/config"
	"github.com/ShayCichocki/hive/internal/git"
)

// resolveRoot returns the top level of the repository containing --repo or
// the working directory. Outside a repository the directory itself is used;
// worktree operations will then fail with a git error.
func resolveRoot(ctx context.Context) (string, error) {
	dir := flagRepo
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	top, err := git.NewRunner(abs).Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil || strings.TrimSpace(top) == "" {
		return abs, nil
	}
	return strings.TrimSpace(top), nil
}

// loadConfig resolves the repository and loads its validated config.
func loadConfig(ctx context.Context) (*config.Config, error) {
	root, err := resolveRoot(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
