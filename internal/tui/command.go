package tui

import (
	"fmt"
	"slices"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

type commandSpec struct {
	aliases  []string
	needsArg string
}

// commands maps canonical names to their aliases and required argument.
var commands = map[string]commandSpec{
	"open":    {aliases: []string{"o", "chat"}, needsArg: "name or phone"},
	"search":  {aliases: []string{"s"}, needsArg: "query"},
	"send":    {aliases: []string{"reply"}, needsArg: "text"},
	"inbox":   {aliases: []string{"chats"}},
	"events":  {aliases: []string{"ev"}},
	"outbox":  {aliases: []string{"ob"}},
	"refresh": {aliases: []string{"r"}},
	"help":    {aliases: []string{"h", "?"}},
	"quit":    {aliases: []string{"q", "q!"}},
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Resolve maps aliases to the canonical name and checks required arguments.
func (c Command) Resolve() (Command, error) {
	name := c.Name
	def, ok := commands[name]
	if !ok {
		for canonical, s := range commands {
			for _, a := range s.aliases {
				if a == name {
					name, def, ok = canonical, s, true
				}
			}
		}
	}
	if !ok {
		return c, fmt.Errorf("unknown command %q", c.Name)
	}
	if def.needsArg != "" && c.Args == "" {
		return c, fmt.Errorf(":%s needs a %s", name, def.needsArg)
	}
	return Command{Name: name, Args: c.Args}, nil
}

// CompleteCommand lists the canonical commands that start with the first
// word of input, for the prompt's suggestion list.
func CompleteCommand(input string) []string {
	input = strings.ToLower(strings.TrimLeft(input, " "))
	if strings.Contains(input, " ") {
		return nil
	}
	var out []string
	for name := range commands {
		if strings.HasPrefix(name, input) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
