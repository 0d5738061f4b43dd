package graph

import (
	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/nverr"
)

// DetectCycle runs a depth-first search over uses-template and
// includes-shortcode edges. A template or shortcode that transitively includes
// itself makes rendering impossible; the returned error names the cycle path.
//
// references-asset and aggregates-page edges are excluded: they never feed
// back into template resolution.
func (g *Graph) DetectCycle() error {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[content.ID]int, g.set.Len())
	var stack []content.ID

	var visit func(id content.ID) []content.ID
	visit = func(id content.ID) []content.ID {
		color[id] = grey
		stack = append(stack, id)
		for _, producer := range sortedIDs(g.consumes[id]) {
			kind := g.consumes[id][producer]
			if kind != EdgeUsesTemplate && kind != EdgeIncludesShortcode {
				continue
			}
			switch color[producer] {
			case white:
				if cycle := visit(producer); cycle != nil {
					return cycle
				}
			case grey:
				// Found a back edge; slice out the cycle from the stack.
				for i, sid := range stack {
					if sid == producer {
						return append(append([]content.ID{}, stack[i:]...), producer)
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range g.set.IDs() {
		if color[id] != white {
			continue
		}
		if cycle := visit(id); cycle != nil {
			path := make([]string, len(cycle))
			for i, cid := range cycle {
				path[i] = string(cid)
			}
			return nverr.CycleDetected(path)
		}
		stack = stack[:0]
	}
	return nil
}
