package compiler

import (
	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/scanner"
)

// maxChainLength bounds the diagnostic breadcrumb walked back through the
// graph's edge provenance for a ScannerFailedError; it exists purely to
// keep the diagnostic readable, not as a correctness limit.
const maxChainLength = 8

// enforceSubset is the oracle-property check: every node the compiler pass
// marks must already have been marked by the prior scan. The first key the
// scan never saw aborts the run with the responsible predecessor chain
// attached, built from the compiler graph's own edge provenance so the
// diagnostic points at why the node was reached at all.
func enforceSubset(scan *scanner.ScanResults, g *depgraph.Graph, marked []depgraph.Node) error {
	for _, n := range marked {
		key := n.Key()
		if scan.HasKey(key) {
			continue
		}
		return scan.RequireMarked(key, predecessorChain(g, key))
	}
	return nil
}

// predecessorChain walks backwards through g's retained edges from key,
// following the "via" node that first reached it, up to maxChainLength
// hops or until a root (no recorded predecessor) is found.
func predecessorChain(g *depgraph.Graph, key string) []string {
	byTarget := make(map[string]depgraph.EdgeRecord)
	for _, e := range g.Edges() {
		if _, seen := byTarget[e.To.Key()]; !seen {
			byTarget[e.To.Key()] = e
		}
	}

	var chain []string
	cur := key
	for i := 0; i < maxChainLength; i++ {
		edge, ok := byTarget[cur]
		if !ok {
			break
		}
		chain = append(chain, edge.Reason+" -> "+cur)
		if edge.From == nil {
			break
		}
		cur = edge.From.Key()
	}
	return chain
}
