// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jeranaias/difychat/internal/app"
	"github.com/jeranaias/difychat/internal/config"
)

// =============================================================================
// VERSION INFO
// =============================================================================

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command is a top-level command.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdConversations
	CmdUpload
	CmdSearch
	CmdModels
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:           "tui",
	CmdChat:          "chat",
	CmdAsk:           "ask",
	CmdConversations: "conversations",
	CmdUpload:        "upload",
	CmdSearch:        "search",
	CmdModels:        "models",
	CmdConfig:        "config",
	CmdVersion:       "version",
	CmdHelp:          "help",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// NeedsRuntime reports whether the command talks to the gateway or local
// storage. Config, models, version and help run on the config alone.
func (c Command) NeedsRuntime() bool {
	switch c {
	case CmdModels, CmdConfig, CmdVersion, CmdHelp:
		return false
	default:
		return true
	}
}

// =============================================================================
// ARGS
// =============================================================================

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags
	Model      string
	Gateway    string
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool

	// Command-specific
	Subcommand      string
	Positional      []string
	Query           string
	ConversationID  string
	NewConversation bool
	Files           []string
	Path            string
	Limit           int
	Confirm         bool
	ConfigKey       string
	ConfigValue     string
	Format          string

	// Raw is everything after the command name, global flags removed.
	Raw []string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `difychat - terminal client for a Dify chat gateway

Usage:
  difychat [global flags] <command> [args]

Commands:
  tui                                   Full-screen client (default)
  chat [--conversation ID] [--new]      Line-mode chat with slash commands
  ask "query" [--conversation ID] [--file PATH]...
                                        Stream one answer to stdout
  conversations [list|show ID|new|rename ID NAME|delete ID --confirm]
                                        Manage conversations (alias: conv)
  conversations export ID [--format md|json] [--output PATH]
                                        Write a conversation to a file
  upload PATH --conversation ID         Upload a file, print its id
  search TERMS [--limit N]              Search the local message archive
  models                                List configured models
  config [show|get KEY|set KEY VALUE|path|keys]
                                        Manage configuration
  version                               Show version
  help                                  Show this help

Global flags:
  --model ID          Use this model instead of chat.default_model
  --gateway URL       Use this gateway instead of gateway.base_url
  --config PATH       Read configuration from PATH
  --json              Print a JSON envelope instead of text
  -v, --verbose       Debug logging
  -q, --quiet         Only print results

Environment:
  DIFYCHAT_HOME                 Config directory (default ~/.difychat)
  DIFYCHAT_GATEWAY_URL          Overrides gateway.base_url
  DIFYCHAT_MODEL                Overrides chat.default_model

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// VersionData is the --json payload of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "difychat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses argv (without the program name).
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}
	if len(remaining) == 0 {
		return CmdTUI, args, nil
	}

	name := strings.ToLower(remaining[0])
	rest := remaining[1:]
	args.Raw = rest

	switch name {
	case "tui":
		return CmdTUI, args, nil
	case "chat":
		return CmdChat, args, parseChatArgs(&args, rest)
	case "ask":
		return CmdAsk, args, parseAskArgs(&args, rest)
	case "conversations", "conversation", "conv", "convs":
		return CmdConversations, args, parseConversationArgs(&args, rest)
	case "upload":
		return CmdUpload, args, parseUploadArgs(&args, rest)
	case "search":
		return CmdSearch, args, parseSearchArgs(&args, rest)
	case "models":
		return CmdModels, args, nil
	case "config":
		parseConfigArgs(&args, rest)
		return CmdConfig, args, nil
	case "version", "--version":
		return CmdVersion, args, nil
	case "help", "-h", "--help":
		return CmdHelp, args, nil
	default:
		return CmdHelp, args, &UsageError{Message: fmt.Sprintf("unknown command %q", remaining[0])}
	}
}

// parseGlobalFlags pulls global flags from anywhere in argv.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var (
		remaining []string
		args      Args
	)

	valueFlags := map[string]*string{
		"--model":   &args.Model,
		"--gateway": &args.Gateway,
		"--config":  &args.ConfigPath,
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "--json":
			args.JSON = true
			continue
		case "-v", "--verbose":
			args.Verbose = true
			continue
		case "-q", "--quiet":
			args.Quiet = true
			continue
		case "--":
			remaining = append(remaining, argv[i:]...)
			return remaining, args, nil
		}

		if dst, ok := valueFlags[arg]; ok {
			if i+1 >= len(argv) || strings.HasPrefix(argv[i+1], "-") {
				return nil, args, &UsageError{Message: fmt.Sprintf("%s requires a value", arg)}
			}
			i++
			*dst = argv[i]
			continue
		}
		if k, v, ok := strings.Cut(arg, "="); ok {
			if dst, ok := valueFlags[k]; ok {
				*dst = v
				continue
			}
		}
		remaining = append(remaining, arg)
	}
	return remaining, args, nil
}

func parseChatArgs(args *Args, rest []string) error {
	p := NewArgParser(rest, "new")
	args.ConversationID = p.Flag("conversation", "c")
	args.NewConversation = p.BoolFlag("new")
	if args.NewConversation && args.ConversationID != "" {
		return &UsageError{Message: "--new and --conversation cannot be combined"}
	}
	return nil
}

func parseAskArgs(args *Args, rest []string) error {
	p := NewArgParser(rest)
	args.ConversationID = p.Flag("conversation", "c")
	args.Files = p.Values("file", "f")
	args.Query = strings.Join(p.PositionalFrom(0), " ")
	if strings.TrimSpace(args.Query) == "" && len(args.Files) == 0 {
		return &UsageError{Message: "ask needs a query", Usage: `difychat ask "query" [--conversation ID] [--file PATH]`}
	}
	return nil
}

func parseConversationArgs(args *Args, rest []string) error {
	p := NewArgParser(rest, "confirm", "yes", "y")
	args.Subcommand = strings.ToLower(p.Subcommand())
	if args.Subcommand == "" {
		args.Subcommand = "list"
	}
	args.Positional = p.PositionalFrom(1)
	args.Confirm = p.BoolFlag("confirm", "yes", "y")
	args.Format = p.Flag("format")
	args.Path = p.Flag("output", "o")

	need := map[string]int{"show": 1, "rename": 2, "delete": 1, "rm": 1, "export": 1}
	if n, ok := need[args.Subcommand]; ok && len(args.Positional) < n {
		usage := "difychat conversations " + args.Subcommand + " ID"
		if args.Subcommand == "rename" {
			usage += " NAME"
		}
		return &UsageError{Message: "missing argument", Usage: usage}
	}
	return nil
}

func parseUploadArgs(args *Args, rest []string) error {
	p := NewArgParser(rest)
	args.Path = p.Positional(0)
	args.ConversationID = p.Flag("conversation", "c")
	if args.Path == "" || args.ConversationID == "" {
		return &UsageError{Message: "upload needs a file and a conversation", Usage: "difychat upload PATH --conversation ID"}
	}
	return nil
}

func parseSearchArgs(args *Args, rest []string) error {
	p := NewArgParser(rest)
	limit, err := p.FlagInt("limit", 0)
	if err != nil {
		return err
	}
	args.Limit = limit
	args.Query = strings.Join(p.PositionalFrom(0), " ")
	if strings.TrimSpace(args.Query) == "" {
		return &UsageError{Message: "search needs terms", Usage: "difychat search TERMS [--limit N]"}
	}
	return nil
}

func parseConfigArgs(args *Args, rest []string) {
	p := NewArgParser(rest)
	args.Subcommand = strings.ToLower(p.Subcommand())
	if args.Subcommand == "" {
		args.Subcommand = "show"
	}
	args.ConfigKey = p.Positional(1)
	args.ConfigValue = strings.Join(p.PositionalFrom(2), " ")
}

// =============================================================================
// EXECUTION
// =============================================================================

// Env is what a command runs against. Runtime may be nil for commands
// that do not need it.
type Env struct {
	Runtime    *app.Runtime
	Config     *config.Config
	ConfigPath string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (e *Env) out() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e *Env) errOut() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

func (e *Env) in() io.Reader {
	if e.Stdin == nil {
		return os.Stdin
	}
	return e.Stdin
}

// ErrNoRuntime is returned when a command that needs the runtime gets none.
var ErrNoRuntime = errors.New("client runtime is not initialized")

// Run executes cmd.
func Run(ctx context.Context, cmd Command, args Args, env *Env) error {
	if cmd.NeedsRuntime() && env.Runtime == nil {
		return ErrNoRuntime
	}
	if env.Config == nil && env.Runtime != nil {
		env.Config = env.Runtime.Config
	}

	switch cmd {
	case CmdTUI:
		return HandleTUI(ctx, env)
	case CmdChat:
		return HandleChat(ctx, args, env)
	case CmdAsk:
		return HandleAsk(ctx, args, env)
	case CmdConversations:
		return HandleConversations(ctx, args, env)
	case CmdUpload:
		return HandleUpload(ctx, args, env)
	case CmdSearch:
		return HandleSearch(ctx, args, env)
	case CmdModels:
		return HandleModels(args, env)
	case CmdConfig:
		return HandleConfig(args, env)
	case CmdVersion:
		if args.JSON {
			return NewJSONResponse("version", VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			}).Print(env.out())
		}
		PrintVersion(env.out())
		return nil
	default:
		PrintUsage(env.out())
		return nil
	}
}
