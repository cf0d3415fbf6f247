package gateway

import (
	"strconv"
	"strings"
)

// ParsedCommand is a leading-slash command with whitespace-split args.
type ParsedCommand struct {
	Cmd  string
	Args []string
}

// Arg returns the i-th argument, "" when absent.
func (c *ParsedCommand) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// IntArg returns the i-th argument as an int when it parses.
func (c *ParsedCommand) IntArg(i int) (int, bool) {
	n, err := strconv.Atoi(c.Arg(i))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseCommand splits "/cmd arg1 arg2" into its parts. Non-command text
// returns false.
func ParseCommand(text string) (*ParsedCommand, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, false
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if cmd == "" {
		return nil, false
	}
	return &ParsedCommand{Cmd: strings.ToLower(cmd), Args: fields[1:]}, true
}
