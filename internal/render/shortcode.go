package render

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/nverr"
)

// interpolationRe matches `<%= .name =%>` expression tokens inside a
// shortcode body. Positional arguments bind as arg1..argN; `.args` expands to
// the full argument list.
var interpolationRe = regexp.MustCompile(`<%=\s*\.([A-Za-z0-9_]+)\s*=%>`)

// Expander replaces shortcode invocation tokens with the recursively rendered
// body of the named shortcode node.
//
// Expansion depth is an explicit counter threaded through the recursion, not
// native call depth: exceeding MaxDepth is a crisp render error, never a hang
// or stack overflow.
type Expander struct {
	Lookup   func(name string) *content.Node
	MaxDepth int
}

// Expand processes every invocation token in body. consumed is invoked once
// per shortcode node actually used, feeding the consumed-set the scheduler
// applies back to the dependency graph.
func (e *Expander) Expand(owner content.ID, body []byte, consumed func(content.ID)) ([]byte, error) {
	return e.expand(owner, body, 0, consumed)
}

func (e *Expander) expand(owner content.ID, body []byte, depth int, consumed func(content.ID)) ([]byte, error) {
	calls := content.ParseShortcodes(body)
	if len(calls) == 0 {
		return body, nil
	}
	if depth >= e.MaxDepth {
		return nil, nverr.ShortcodeRecursion(string(owner), depth)
	}

	var out []byte
	prev := 0
	for _, call := range calls {
		node := e.Lookup(call.Name)
		if node == nil {
			return nil, nverr.ShortcodeNotFound(string(owner), call.Name)
		}
		if node.Broken() {
			return nil, nverr.RenderFailed(string(owner), node.Err)
		}
		if consumed != nil {
			consumed(node.ID)
		}

		fragment := interpolate(node.Body, call.Args)
		expanded, err := e.expand(owner, fragment, depth+1, consumed)
		if err != nil {
			return nil, err
		}

		out = append(out, body[prev:call.Start]...)
		out = append(out, expanded...)
		prev = call.End
	}
	out = append(out, body[prev:]...)
	return out, nil
}

// interpolate substitutes `<%= .argN =%>` tokens with positional arguments.
// Unbound names expand to the empty string.
func interpolate(body []byte, args []string) []byte {
	return interpolationRe.ReplaceAllFunc(body, func(token []byte) []byte {
		name := string(interpolationRe.FindSubmatch(token)[1])
		switch {
		case name == "args":
			return []byte(strings.Join(args, " "))
		case strings.HasPrefix(name, "arg"):
			idx := 0
			for _, r := range name[3:] {
				if r < '0' || r > '9' {
					return nil
				}
				idx = idx*10 + int(r-'0')
			}
			if idx >= 1 && idx <= len(args) {
				return []byte(args[idx-1])
			}
		}
		return nil
	})
}
