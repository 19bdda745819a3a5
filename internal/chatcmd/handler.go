package chatcmd

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/pixil98/go-realm/internal/chat"
	"github.com/pixil98/go-realm/internal/world"
)

const maxChannelName = 32

var channelNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Env is what a command can reach on behalf of the player who typed it.
type Env interface {
	PlayerID() string
	Rename(ctx context.Context, nick string) error
	LookupNickname(ctx context.Context, nick string) (string, bool)
	Whisper(ctx context.Context, toID, text string) error
	CreateChannel(ctx context.Context, name string) error
	Notify(ctx context.Context, text string) error
}

// CommandFunc runs a command with its parsed arguments.
type CommandFunc func(ctx context.Context, env Env, args []string) error

// Command is one slash command. The last of Args arguments takes the rest of
// the line.
type Command struct {
	Name  string
	Usage string
	Args  int
	Run   CommandFunc
}

type Handler struct {
	commands map[string]*Command
}

func NewHandler() *Handler {
	h := &Handler{commands: map[string]*Command{}}

	// Register built-in commands
	h.MustRegister(&Command{Name: "nick", Usage: "/nick <name>", Args: 1, Run: runNick})
	h.MustRegister(&Command{Name: "whisper", Usage: "/whisper <playername> <message>", Args: 2, Run: runWhisper})
	h.MustRegister(&Command{Name: "create", Usage: "/create <channel>", Args: 1, Run: runCreate})
	return h
}

func (h *Handler) Register(c *Command) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if c.Run == nil {
		return fmt.Errorf("command %q has no run func", c.Name)
	}
	if _, exists := h.commands[c.Name]; exists {
		return fmt.Errorf("command %q already registered", c.Name)
	}
	h.commands[c.Name] = c
	return nil
}

func (h *Handler) MustRegister(c *Command) {
	if err := h.Register(c); err != nil {
		panic(err)
	}
}

// Handle runs text as a slash command. It reports false for ordinary chat.
// Input mistakes come back as *UserError.
func (h *Handler) Handle(ctx context.Context, env Env, text string) (bool, error) {
	if !strings.HasPrefix(text, "/") {
		return false, nil
	}

	name, rest := cutWord(strings.TrimPrefix(text, "/"))
	cmd, ok := h.commands[strings.ToLower(name)]
	if !ok {
		return true, userErrorf(tmplUnknownCommand, noticeData{Command: name})
	}

	args := splitArgs(rest, cmd.Args)
	if len(args) < cmd.Args {
		return true, userErrorf(tmplUsage, noticeData{Usage: cmd.Usage})
	}

	return true, cmd.Run(ctx, env, args)
}

func runNick(ctx context.Context, env Env, args []string) error {
	nick := args[0]
	err := env.Rename(ctx, nick)
	if errors.Is(err, world.ErrNicknameTaken) {
		return userErrorf(tmplNickTaken, noticeData{Nick: nick})
	}
	if err != nil {
		return fmt.Errorf("renaming %s: %w", env.PlayerID(), err)
	}
	return notify(ctx, env, tmplNickChanged, noticeData{Nick: nick})
}

func runWhisper(ctx context.Context, env Env, args []string) error {
	target, text := args[0], args[1]

	id, ok := env.LookupNickname(ctx, target)
	if !ok {
		return userErrorf(tmplPlayerNotFound, noticeData{Target: target})
	}

	err := env.Whisper(ctx, id, text)
	if errors.Is(err, chat.ErrNotOnline) {
		return userErrorf(tmplPlayerOffline, noticeData{Target: target})
	}
	if err != nil {
		return fmt.Errorf("whispering %s: %w", id, err)
	}
	return notify(ctx, env, tmplWhisperSent, noticeData{Target: target, Text: text})
}

func runCreate(ctx context.Context, env Env, args []string) error {
	name := args[0]
	if len(name) > maxChannelName || !channelNameRe.MatchString(name) {
		return userErrorf(tmplBadChannel, noticeData{Max: maxChannelName})
	}

	err := env.CreateChannel(ctx, name)
	if errors.Is(err, chat.ErrAlreadyExists) {
		return userErrorf(tmplChannelExists, noticeData{Channel: name})
	}
	if err != nil {
		return fmt.Errorf("creating channel %s: %w", name, err)
	}
	return notify(ctx, env, tmplChannelCreated, noticeData{Channel: name})
}

func notify(ctx context.Context, env Env, tmpl string, data noticeData) error {
	msg, err := ExpandTemplate(tmpl, data)
	if err != nil {
		return err
	}
	return env.Notify(ctx, msg)
}

func cutWord(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// splitArgs splits s on whitespace into at most n fields; the last field keeps
// the remainder of the line with its inner spacing.
func splitArgs(s string, n int) []string {
	var out []string
	s = strings.TrimSpace(s)
	for len(out) < n-1 && s != "" {
		var word string
		word, s = cutWord(s)
		out = append(out, word)
	}
	if s != "" && len(out) < n {
		out = append(out, s)
	}
	return out
}
