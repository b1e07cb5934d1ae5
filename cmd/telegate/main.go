// Package main provides the CLI entry point for telegate.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	internalconfig "github.com/smykla-skalski/telegate/internal/config"
	"github.com/smykla-skalski/telegate/internal/gate"
	"github.com/smykla-skalski/telegate/internal/parser"
	"github.com/smykla-skalski/telegate/internal/paths"
	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/config"
	"github.com/smykla-skalski/telegate/pkg/hook"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

const (
	// ExitCodeOK is used for every handled invocation. Decisions are
	// communicated via JSON on stdout, never via exit codes.
	ExitCodeOK = 0

	// ExitCodeError indicates telegate itself failed.
	ExitCodeError = 1
)

var (
	hookType      string
	botToken      string
	chatID        int64
	timeoutFlag   string
	timeoutAction string
	logLevel      string
	logFile       string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCodeError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "telegate",
	Short: "Remote approval gate for Claude Code",
	Long: `Remote approval gate for Claude Code - relays permission requests,
questions, and stop events to a Telegram operator and feeds their
decisions back as hook responses.`,
	RunE:              run,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.Flags().StringVarP(
		&hookType,
		"hook-type",
		"T",
		"",
		"Hook event type (PreToolUse, Stop, Notification)",
	)
	rootCmd.Flags().StringVar(&botToken, "bot-token", "", "Telegram bot token")
	rootCmd.Flags().Int64Var(&chatID, "chat-id", 0, "Telegram chat id")
	rootCmd.Flags().StringVar(
		&timeoutFlag,
		"timeout",
		"",
		"Approval wait timeout (e.g. 5m)",
	)
	rootCmd.Flags().StringVar(
		&timeoutAction,
		"timeout-action",
		"",
		"Action on approval timeout (deny, allow, wait)",
	)

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path")
}

func run(cmd *cobra.Command, _ []string) error {
	// Determine event type using enumer-generated function
	eventType, err := hook.EventTypeString(hookType)
	if err != nil {
		eventType = hook.EventTypePreToolUse
	}

	// Parse JSON input first so working-directory-sensitive config and
	// mode resolution see the hook's cwd, not the shell's.
	jsonParser := parser.NewJSONParser(os.Stdin)

	hookCtx, err := jsonParser.Parse(eventType)
	if err != nil {
		if errors.Is(err, parser.ErrEmptyInput) {
			return nil
		}

		return errors.Wrap(err, "failed to parse input")
	}

	workDir := hookCtx.WorkingDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return errors.Wrap(err, "failed to get working directory")
		}
	}

	cfg, err := loadConfig(workDir)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	resolver, err := paths.NewResolver()
	if err != nil {
		return errors.Wrap(err, "failed to resolve state directory")
	}

	log, err := newLogger(cfg, resolver)
	if err != nil {
		return errors.Wrap(err, "failed to create logger")
	}

	log.Info("hook invoked",
		"eventType", eventType,
		"session_id", hookCtx.SessionID,
		"tool", hookCtx.ToolName,
	)

	g, err := gate.New(cfg, resolver, workDir, gate.WithLogger(log))
	if err != nil {
		if errors.Is(err, telegram.ErrNotConfigured) {
			// Fail open: an unconfigured install must never block the host.
			log.Error("telegram not configured, passing through")

			return nil
		}

		return errors.Wrap(err, "failed to assemble gate")
	}

	result, err := g.Handle(cmd.Context(), hookCtx)
	if err != nil {
		log.Error("hook handling failed", "error", err.Error())

		// Fail open here too; surfacing the error would block the agent.
		return nil
	}

	return writeResult(log, result)
}

// writeResult emits the decision JSON for actions that carry one.
func writeResult(log logger.Logger, result *gate.Result) error {
	if result.Response == nil {
		log.Info("no opinion", "action", result.Action)

		return nil
	}

	data, err := json.Marshal(result.Response)
	if err != nil {
		return errors.Wrap(err, "marshal hook response")
	}

	fmt.Fprintf(os.Stdout, "%s\n", data)

	log.Info("decision written", "action", result.Action)

	return nil
}

// loadConfig loads configuration from all sources with precedence.
func loadConfig(workDir string) (*config.Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get home directory")
	}

	loader, err := internalconfig.NewKoanfLoaderWithDirs(homeDir, workDir)
	if err != nil {
		return nil, err
	}

	return loader.Load(buildFlagsMap())
}

// buildFlagsMap converts set CLI flags into the loader's flag map.
func buildFlagsMap() map[string]any {
	flags := make(map[string]any)

	if botToken != "" {
		flags["bot-token"] = botToken
	}

	if chatID != 0 {
		flags["chat-id"] = chatID
	}

	if timeoutFlag != "" {
		flags["timeout"] = timeoutFlag
	}

	if timeoutAction != "" {
		flags["timeout-action"] = timeoutAction
	}

	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	if logFile != "" {
		flags["log-file"] = logFile
	}

	return flags
}

// newLogger builds the file logger from the logging section.
func newLogger(cfg *config.Config, resolver *paths.Resolver) (logger.Logger, error) {
	path := cfg.GetLogging().GetFile()
	if path == "" {
		path = resolver.LogFile()
	}

	return logger.NewFileLogger(
		paths.ExpandHome(path),
		logger.ParseLevel(cfg.GetLogging().GetLevel()),
	)
}
