package content

import (
	"regexp"
	"strings"
)

// Shortcode invocation syntax: `<% .name arg1 "arg two" %>`. The leading dot
// distinguishes invocations from the template engine's own delimiters; the
// renderer substitutes positional arguments into the shortcode body via
// `<%= .argN =%>` interpolation tokens.

var shortcodeCallRe = regexp.MustCompile(`<%\s*\.([A-Za-z0-9_-]+)((?:\s+(?:"[^"]*"|[^%\s"]+))*)\s*%>`)

// ShortcodeCall is one parsed invocation token in a body.
type ShortcodeCall struct {
	Name string
	Args []string
	// Start and End delimit the full token in the source body.
	Start, End int
}

// ParseShortcodes extracts all shortcode invocation tokens from a body, in
// source order.
func ParseShortcodes(body []byte) []ShortcodeCall {
	matches := shortcodeCallRe.FindAllSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return nil
	}
	calls := make([]ShortcodeCall, 0, len(matches))
	for _, m := range matches {
		call := ShortcodeCall{
			Name:  string(body[m[2]:m[3]]),
			Start: m[0],
			End:   m[1],
		}
		if m[4] >= 0 {
			call.Args = splitShortcodeArgs(string(body[m[4]:m[5]]))
		}
		calls = append(calls, call)
	}
	return calls
}

// ShortcodeNames returns the distinct invocation names in a body.
func ShortcodeNames(body []byte) []string {
	var names []string
	seen := map[string]bool{}
	for _, call := range ParseShortcodes(body) {
		if !seen[call.Name] {
			seen[call.Name] = true
			names = append(names, call.Name)
		}
	}
	return names
}

// splitShortcodeArgs tokenizes the argument list, honoring double quotes.
func splitShortcodeArgs(raw string) []string {
	var args []string
	fields := strings.Fields(raw)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if strings.HasPrefix(f, `"`) {
			// Re-join quoted arguments that Fields split apart.
			for !strings.HasSuffix(f, `"`) || len(f) == 1 {
				i++
				if i >= len(fields) {
					break
				}
				f += " " + fields[i]
			}
			f = strings.Trim(f, `"`)
		}
		args = append(args, f)
	}
	return args
}
