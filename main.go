// ollamachat - A chat client for local Ollama servers.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	orchestrator "github.com/jeranaias/ollamachat/internal/chat"
	"github.com/jeranaias/ollamachat/internal/config"
	"github.com/jeranaias/ollamachat/internal/export"
	"github.com/jeranaias/ollamachat/internal/model"
	"github.com/jeranaias/ollamachat/internal/ollama"
	"github.com/jeranaias/ollamachat/internal/relay"
	"github.com/jeranaias/ollamachat/internal/store"
	uichat "github.com/jeranaias/ollamachat/internal/ui/chat"
	"github.com/jeranaias/ollamachat/internal/util"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cmd := "chat"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "chat":
		runChat()
	case "serve":
		runServe(args)
	case "list":
		runList()
	case "models":
		runModels()
	case "export":
		runExport(args)
	case "version", "--version", "-v":
		fmt.Printf("ollamachat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`ollamachat - chat with local Ollama models

Usage:
  ollamachat [command]

Commands:
  chat            Start the terminal chat interface (default)
  serve           Run the CORS relay for browser clients
  list            List stored conversations
  models          List models installed on the server
  export <id>     Export a conversation (markdown by default, -json for JSON)
  version         Print version information
  help            Show this help

Configuration is read from ~/.ollamachat/config.toml.
`)
}

// =============================================================================
// SETUP
// =============================================================================

// bootstrap loads the config and opens the persisted store.
func bootstrap() (*config.Config, *store.Store, *ollama.Client) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	statePath, err := cfg.StatePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	persister, err := store.OpenSQLitePersister(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	st, err := store.New(store.Options{
		Persister: persister,
		Defaults:  cfg.ModelConfig(),
		Settings:  cfg.Settings(),
		SaveDelay: cfg.SaveDelay(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The persisted server address wins over the config file; the settings
	// survive edits made inside the app.
	clientCfg := cfg.ClientConfig()
	if addr := st.Settings().Ollama.Address(); addr != "" {
		clientCfg.BaseURL = addr
	}

	return cfg, st, ollama.NewClientWithConfig(clientCfg)
}

// =============================================================================
// COMMANDS
// =============================================================================

func runChat() {
	_, st, client := bootstrap()
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("MAIN: failed to close store: %v", err)
		}
	}()

	// The TUI owns the terminal; route logs to a file instead.
	if dir, err := config.ConfigDir(); err == nil {
		if f, err := os.OpenFile(dir+"/ollamachat.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
			log.SetOutput(f)
			defer f.Close()
		}
	}

	orch := orchestrator.New(st, client)
	orch.RefreshStatus(context.Background())

	// Live config reload keeps the theme fresh without a restart.
	if path, err := config.ConfigPath(); err == nil {
		if watcher, err := config.NewWatcher(path, func(next *config.Config) {
			theme := next.UI.Theme
			st.UpdateSettings(model.AppSettingsPatch{Theme: &theme})
		}); err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	program := tea.NewProgram(
		uichat.New(st, orch, ""),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	listen := cfg.Relay.ListenAddr
	staticDir := cfg.Relay.StaticDir
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-listen":
			if i+1 < len(args) {
				i++
				listen = args[i]
			}
		case "-static":
			if i+1 < len(args) {
				i++
				staticDir = args[i]
			}
		}
	}

	r, err := relay.New(relay.Config{
		ListenAddr: listen,
		Target:     cfg.Ollama.Address(),
		StaticDir:  staticDir,
		RateLimit:  cfg.Relay.RateLimit,
		RateBurst:  cfg.Relay.RateBurst,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runList() {
	_, st, _ := bootstrap()
	defer st.Close()

	snap := st.Snapshot()
	if len(snap.Conversations) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, c := range snap.Conversations {
		marker := " "
		if c.ID == snap.CurrentConversationID {
			marker = "*"
		}
		fmt.Printf("%s %s  %-40s %3d messages  %s\n",
			marker, c.ID, util.TruncateString(c.Title, 40),
			c.MessageCount(), c.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func runModels() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := ollama.NewClientWithConfig(cfg.ClientConfig())
	models, err := client.ListModels(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(models) == 0 {
		fmt.Println("No models installed.")
		return
	}
	for _, m := range models {
		fmt.Printf("%-40s %8.1f GB\n", m.Name, float64(m.Size)/1e9)
	}
}

func runExport(args []string) {
	format := "markdown"
	var id string
	for _, arg := range args {
		switch arg {
		case "-json":
			format = "json"
		case "-markdown", "-md":
			format = "markdown"
		default:
			id = arg
		}
	}

	_, st, _ := bootstrap()
	defer st.Close()

	conv := st.Conversation(id)
	if conv == nil {
		if id == "" {
			// No ID: export the selected conversation.
			conv = st.CurrentConversation()
		}
		if conv == nil {
			fmt.Fprintf(os.Stderr, "Error: conversation %q not found\n", id)
			fmt.Fprintln(os.Stderr, "Conversations:")
			for _, c := range st.Snapshot().Conversations {
				fmt.Fprintf(os.Stderr, "  %s  %s\n", c.ID, c.Title)
			}
			os.Exit(1)
		}
	}

	var path string
	var err error
	if format == "json" {
		path, err = export.ExportJSON(conv, nil)
	} else {
		path, err = export.ExportMarkdown(conv, nil)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported to %s\n", path)
}
