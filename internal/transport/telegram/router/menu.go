package router

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	kit "scriptbot/internal/transport"
)

// validCommand is the Bot API constraint on command names.
var validCommand = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// menuCommands lists registered commands for the client menu, sorted by
// name. Names the Bot API would refuse stay routable but are left out.
func menuCommands(cmds []Command) []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if !validCommand.MatchString(name) {
			continue
		}
		desc := strings.TrimSpace(c.Description)
		if desc == "" {
			desc = name
		}
		out = append(out, kit.BotCommand{Command: name, Description: desc})
	}
	slices.SortStableFunc(out, func(a, b kit.BotCommand) int { return cmp.Compare(a.Command, b.Command) })
	return slices.CompactFunc(out, func(a, b kit.BotCommand) bool { return a.Command == b.Command })
}
