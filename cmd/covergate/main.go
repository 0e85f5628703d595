package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/benedictkwok/cover-letter-assistant/internal/analytics"
	"github.com/benedictkwok/cover-letter-assistant/internal/audit"
	"github.com/benedictkwok/cover-letter-assistant/internal/config"
	"github.com/benedictkwok/cover-letter-assistant/internal/db"
	"github.com/benedictkwok/cover-letter-assistant/internal/gate"
	"github.com/benedictkwok/cover-letter-assistant/internal/invite"
	"github.com/benedictkwok/cover-letter-assistant/internal/logging"
	"github.com/benedictkwok/cover-letter-assistant/internal/mcp"
	"github.com/benedictkwok/cover-letter-assistant/internal/prefs"
	"github.com/benedictkwok/cover-letter-assistant/internal/quota"
	"github.com/benedictkwok/cover-letter-assistant/internal/ratelimit"
	"github.com/benedictkwok/cover-letter-assistant/internal/token"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"invite": true, "token": true, "quota": true,
	"usage": true, "audit": true, "prefs": true,
	"help": true,
}

// app bundles the wired components the CLI commands operate on.
type app struct {
	cfg       *config.Config
	gate      *gate.Gatekeeper
	invites   *invite.Registry
	tokens    *token.Service
	quota     *quota.Tracker
	analytics *analytics.Recorder
	prefs     *prefs.Engine
	audit     *audit.Log
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ _____   _____ _ __ __ _  __ _| |_ ___
  / __/ _ \ \ / / _ \ '__/ _' |/ _' | __/ _ \
 | (_| (_) \ V /  __/ | | (_| | (_| | ||  __/
  \___\___/ \_/ \___|_|  \__, |\__,_|\__\___|
                         |___/

  Invitation-gated cover letter service gateway

  Usage: covergate <command> [options]
         covergate --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before any initialization
	if isHelpOrVersion() {
		cliApp := newCLIApp(nil)
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// .env is optional; environment wins over config.json either way.
	godotenv.Load()

	logger, err := logging.Init(logging.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".covergate")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	auditLog := audit.New(cfg.AuditLogFile, logger)
	registry := invite.NewRegistry(cfg.InvitedUsersFile, logger)
	tokens := token.NewService(cfg.SessionSecret,
		time.Duration(cfg.SessionTimeoutHours)*time.Hour, registry, logger)
	limiter := ratelimit.NewLimiter(database, auditLog, logger)
	tracker := quota.NewTracker(database, auditLog, cfg.DailyGenerationLimit, logger)
	engine := prefs.NewEngine(prefs.NewStore(database, logger), logger)
	recorder := analytics.NewRecorder(database, logger)
	keeper := gate.New(cfg, registry, tokens, limiter, tracker, engine, recorder, auditLog, logger)

	a := &app{
		cfg:       cfg,
		gate:      keeper,
		invites:   registry,
		tokens:    tokens,
		quota:     tracker,
		analytics: recorder,
		prefs:     engine,
		audit:     auditLog,
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		cliApp := newCLIApp(a)
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'covergate --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, recorder, tracker, auditLog, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
