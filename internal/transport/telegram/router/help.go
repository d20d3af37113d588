package router

import (
	"cmp"
	"html"
	"slices"
	"strings"
)

// helpText renders HTML help: the command list, or one command's details.
func (r *Router) helpText(args []string) string {
	t := r.tbl.Load()
	if len(args) > 0 {
		name := sanitizeCommand(strings.TrimPrefix(args[0], "/"))
		if target, ok := t.alias[name]; ok {
			name = target
		}
		c, ok := t.commands[name]
		if !ok {
			return "❓ <b>Unknown command</b>\nType <code>/help</code> to list commands."
		}
		return commandHelp(c, t)
	}

	cmds := sortedCommands(t)
	lines := []string{"📚 <b>Commands</b>", "Type <code>/help &lt;cmd&gt;</code> for details.", ""}
	for _, c := range cmds {
		line := "• <code>/" + html.EscapeString(c.Name) + "</code>"
		if c.Description != "" {
			line += " - " + html.EscapeString(c.Description)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func commandHelp(c Command, t *table) string {
	lines := []string{"📚 <b>Help</b> <code>/" + html.EscapeString(c.Name) + "</code>"}
	if c.Description != "" {
		lines = append(lines, html.EscapeString(c.Description))
	}
	if c.Access == AccessOwnerOnly {
		lines = append(lines, "🔒 <i>Owner only</i>")
	}
	if c.Usage != "" {
		lines = append(lines, "", "<b>Usage</b>", "<code>"+html.EscapeString(c.Usage)+"</code>")
	}
	var aliases []string
	for a, target := range t.alias {
		if target == c.Name {
			aliases = append(aliases, "/"+a)
		}
	}
	if len(aliases) > 0 {
		slices.Sort(aliases)
		lines = append(lines, "", "<b>Aliases</b>", html.EscapeString(strings.Join(aliases, ", ")))
	}
	return strings.Join(lines, "\n")
}

// sortedCommands lists public commands first, then owner-only ones, by name.
func sortedCommands(t *table) []Command {
	out := make([]Command, 0, len(t.commands))
	for _, c := range t.commands {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Command) int {
		if a.Access != b.Access {
			return cmp.Compare(b.Access, a.Access)
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
