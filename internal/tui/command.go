package tui

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ekdusrla/ssukssuk-closet/internal/tui/ui"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

type commandDef struct {
	name    string
	aliases []string
	arg     string // placeholder shown in help; empty means no argument
	help    string
}

var commands = []commandDef{
	{name: "chat", aliases: []string{"c", "open"}, arg: "<nickname>", help: "Open the room with a user"},
	{name: "refresh", aliases: []string{"r", "sync"}, help: "Refresh the room list and the open room"},
	{name: "retry", help: "Resend the latest failed message"},
	{name: "attach", aliases: []string{"a"}, arg: "<path>", help: "Check an image before attaching it"},
	{name: "info", aliases: []string{"i"}, help: "Show details of the open room"},
	{name: "logout", help: "Sign out and clear cached rooms"},
	{name: "help", aliases: []string{"h", "?"}, help: "Show this help"},
	{name: "quit", aliases: []string{"q", "q!", "exit"}, help: "Quit"},
}

// ParseCommand parses a command string (without the leading ':'). Aliases
// resolve to the canonical name.
func ParseCommand(input string) (Command, error) {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}

	for _, def := range commands {
		if def.name != cmd.Name && !slices.Contains(def.aliases, cmd.Name) {
			continue
		}
		cmd.Name = def.name
		if def.arg != "" && cmd.Args == "" {
			return cmd, fmt.Errorf("%w: :%s %s", ErrMissingArgument, def.name, def.arg)
		}
		return cmd, nil
	}
	return cmd, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
}

// CommandHints lists the commands for the help page.
func CommandHints() []ui.MenuHint {
	hints := make([]ui.MenuHint, 0, len(commands))
	for _, def := range commands {
		key := ":" + def.name
		if def.arg != "" {
			key += " " + def.arg
		}
		hints = append(hints, ui.MenuHint{Key: key, Description: def.help})
	}
	return hints
}
