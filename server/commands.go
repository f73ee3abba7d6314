package server

import (
	"fmt"
	"strings"
)

// adminCommand is one of the trivial non-SQL commands carried forward
// from the original's commands/ module (ping.rs, echo.rs, help.rs):
// a name, a one-line description, and a handler taking the raw
// argument text following the command word.
type adminCommand struct {
	name        string
	description string
	handler     func(args string) string
}

var adminCommands = []adminCommand{
	{
		name:        "ping",
		description: "Return PONG response for connectivity testing",
		handler:     func(string) string { return "PONG" },
	},
	{
		name:        "echo",
		description: "Echoes back all provided arguments",
		handler:     func(args string) string { return args },
	},
	{
		name:        "help",
		description: "Show available commands and their descriptions",
		handler:     helpHandler,
	},
}

func lookupAdminCommand(name string) (adminCommand, bool) {
	for _, c := range adminCommands {
		if c.name == name {
			return c, true
		}
	}
	return adminCommand{}, false
}

func commandNames() []string {
	names := make([]string, len(adminCommands))
	for i, c := range adminCommands {
		names[i] = c.name
	}
	return names
}

func helpHandler(args string) string {
	available := strings.Join(commandNames(), ", ")
	arg := strings.TrimSpace(args)
	if arg == "" {
		return fmt.Sprintf("Available commands: %s. Use 'help <command>' for more info.", available)
	}
	for _, c := range adminCommands {
		if strings.EqualFold(c.name, arg) {
			return c.description
		}
	}
	return fmt.Sprintf("Unknown command '%s'. Available commands: %s", strings.ToLower(arg), available)
}

// dispatchAdmin recognizes a literal admin command at the start of sql,
// matching commands/mod.rs's dispatch-before-parse structure: PING,
// ECHO <text>, and HELP [command] are handled here before anything is
// handed to sqlfront.
func dispatchAdmin(sql string) (string, bool) {
	trimmed := strings.TrimSpace(sql)
	fields := strings.SplitN(trimmed, " ", 2)
	if len(fields) == 0 {
		return "", false
	}
	cmd, ok := lookupAdminCommand(strings.ToLower(fields[0]))
	if !ok {
		return "", false
	}
	var args string
	if len(fields) > 1 {
		args = fields[1]
	}
	return cmd.handler(args), true
}
