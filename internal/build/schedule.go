// Package build contains the incremental, parallel build pipeline: the
// scheduler that partitions the dependency graph into batches, the runner that
// executes them across a bounded worker pool, the process-lifetime build
// cache, and the atomic output writer.
package build

import (
	"fmt"
	"sort"

	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/graph"
)

// Schedule topologically partitions the subgraph induced by roots into
// ordered batches of mutually independent nodes. Producers always land in an
// earlier batch than their consumers, so batch N+1 may only start once batch
// N has settled. Within a batch, nodes are in stable ID order so output
// ordering is deterministic.
//
// The caller must run cycle detection first; Schedule returns an error if the
// induced subgraph cannot be fully layered.
func Schedule(g *graph.Graph, roots map[content.ID]struct{}) ([][]content.ID, error) {
	// In-degree restricted to the induced subgraph: a producer outside the
	// root set is already up to date and does not gate anything.
	indegree := make(map[content.ID]int, len(roots))
	for id := range roots {
		indegree[id] = 0
	}
	for id := range roots {
		for _, producer := range g.Producers(id) {
			if _, ok := roots[producer]; ok {
				indegree[id]++
			}
		}
	}

	var batches [][]content.ID
	remaining := len(roots)
	for remaining > 0 {
		var batch []content.ID
		for id, deg := range indegree {
			if deg == 0 {
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			return nil, fmt.Errorf("dependency graph not schedulable: %d nodes remain with unresolved producers", remaining)
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i] < batch[j] })

		for _, id := range batch {
			delete(indegree, id)
			remaining--
			for _, consumer := range g.Consumers(id) {
				if _, ok := indegree[consumer]; ok {
					indegree[consumer]--
				}
			}
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
