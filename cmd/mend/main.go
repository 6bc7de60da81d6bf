// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

// mend is an interactive coding assistant: an LLM agent loop with
// sandboxed tools (file access, search, shell, git, web) and a
// context window manager that prunes and compacts the conversation so
// long sessions never overflow the model's context.
//
// Configuration comes from a YAML file (MEND_CONFIG or
// ~/.config/mend/mend.yaml) refined by MEND_* environment variables;
// the flags below override both:
//
//	--config        path to the config file
//	--model         model identifier
//	--workspace     directory the tools operate in (default: cwd)
//	--no-auto-compact   disable automatic compaction
//	--yes           skip permission prompts (unattended runs)
//	--verbose       debug logging to stderr
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/mendhq/mend/lib/config"
	"github.com/mendhq/mend/lib/llm"
	llmcontext "github.com/mendhq/mend/lib/llm/context"
	"github.com/mendhq/mend/lib/permission"
	"github.com/mendhq/mend/lib/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mend:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    = pflag.String("config", "", "path to the config file")
		model         = pflag.String("model", "", "model identifier (overrides config)")
		workspaceDir  = pflag.String("workspace", "", "directory the tools operate in (default: cwd)")
		noAutoCompact = pflag.Bool("no-auto-compact", false, "disable automatic context compaction")
		assumeYes     = pflag.Bool("yes", false, "skip permission prompts")
		verbose       = pflag.Bool("verbose", false, "debug logging to stderr")
	)
	pflag.Parse()

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		cfg.Provider.Model = *model
	}
	if *noAutoCompact {
		cfg.Context.DisableAutoCompact = true
	}

	root := *workspaceDir
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
	}
	if cfg.Tools.Workspace != "" && *workspaceDir == "" {
		root = cfg.Tools.Workspace
	}

	shellTimeout, err := time.ParseDuration(cfg.Tools.ShellTimeout)
	if err != nil {
		return fmt.Errorf("invalid shell_timeout %q: %w", cfg.Tools.ShellTimeout, err)
	}
	workspace, err := tools.NewWorkspace(root, tools.WorkspaceOptions{
		MaxOutputBytes: cfg.Tools.MaxOutputBytes,
		ShellTimeout:   shellTimeout,
	})
	if err != nil {
		return err
	}
	registry := tools.NewRegistry(workspace)

	gate := permission.NewGate(os.Stdin, os.Stdout)
	if *assumeYes {
		gate.Disable()
	}

	manager := llmcontext.NewManager(cfg.Provider.Model, systemPrompt(workspace.Root()),
		llmcontext.Options{
			ContextLimit:     cfg.Context.Limit,
			PruneProtect:     cfg.Context.PruneProtect,
			PruneMinimum:     cfg.Context.PruneMinimum,
			CompactThreshold: cfg.Context.CompactThreshold,
		})

	provider := llm.NewOpenAI(nil, cfg.Provider.BaseURL, cfg.APIKey())

	sessionID := uuid.NewString()
	logger = logger.With("session", sessionID)
	logger.Info("session starting",
		"model", cfg.Provider.Model,
		"workspace", workspace.Root(),
		"context_limit", manager.ContextLimit(),
	)

	agent := &session{
		provider:           provider,
		registry:           registry,
		gate:               gate,
		manager:            manager,
		model:              cfg.Provider.Model,
		system:             systemPrompt(workspace.Root()),
		maxTokens:          cfg.Provider.MaxOutputTokens,
		autoCompact:        !cfg.Context.DisableAutoCompact,
		proactiveThreshold: cfg.Context.ProactivePruneThreshold,
		input:              os.Stdin,
		output:             os.Stdout,
		logger:             logger,
	}

	fmt.Printf("mend %s · %s · workspace %s\n",
		sessionID[:8], cfg.Provider.Model, workspace.Root())
	fmt.Println(`Type a request, or /status, /prune, /compact, /quit.`)

	return agent.runREPL(context.Background())
}

// loadConfig loads from the explicit path when given, falling back to
// the standard search order otherwise.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// systemPrompt is the fixed assistant instruction. The workspace root
// is interpolated so the model knows where relative paths land.
func systemPrompt(workspaceRoot string) string {
	return fmt.Sprintf(`You are mend, a coding assistant working in the repository at %s.

Use the provided tools to inspect and modify the repository. Prefer
targeted reads (read_lines, grep) over whole-file reads for large
files. Make the smallest change that accomplishes the task, verify it
when possible (run_shell), and explain what you changed.

All file paths are relative to the repository root.`, workspaceRoot)
}
