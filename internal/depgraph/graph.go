// Package depgraph is the dependency graph engine: a polymorphic node graph
// driven to a fixed point by static, conditional, and dynamic dependency
// edges.
package depgraph

import (
	"github.com/aot-native/ilc/internal/diagnostics"
)

// Node is the polymorphic graph entity every pass (scanner, compiler) marks.
// Concrete node families live in internal/nodes; this package only knows the
// shape it needs to drive marking.
type Node interface {
	// Key is the interning identity used for dedup and marked-set membership.
	Key() string

	// StaticDependencies are always implied once n is marked. A failure here
	// degrades n to a throwing stub: no
	// edges are added, a warning is logged, and marking continues.
	StaticDependencies(g *Graph) ([]Dependency, error)

	HasConditionalStaticDependencies() bool
	// ConditionalDependencies only needs to be called when
	// HasConditionalStaticDependencies is true.
	ConditionalDependencies(g *Graph) ([]ConditionalDependency, error)

	HasDynamicDependencies() bool
	// SearchDynamicDependencies is re-invoked on every marking wave once n
	// has been registered as a dynamic producer, with markedNodes the full
	// discovery-ordered marked list and firstNewIndex the first index added
	// since the previous wave.
	SearchDynamicDependencies(g *Graph, markedNodes []Node, firstNewIndex int) ([]Dependency, error)
}

// Dependency is a plain (target, reason) static/dynamic edge.
type Dependency struct {
	Target Node
	Reason string
}

// ConditionalDependency fires its Target only once Trigger is itself marked.
type ConditionalDependency struct {
	Trigger Node
	Target  Node
	Reason  string
}

// TrackingLevel controls how much edge provenance the graph retains, purely
// for diagnostics.
type TrackingLevel int

const (
	TrackNone TrackingLevel = iota
	TrackFirstEdge
	TrackAll
)

// EdgeRecord is one retained (from, to, reason) triple, kept only when the
// graph's TrackingLevel calls for it.
type EdgeRecord struct {
	From   Node // nil for a root
	To     Node
	Reason string
}

type pendingConditional struct {
	holder Node
	target Node
	reason string
}

// Graph drives nodes to a fixed point. It has no notion of scan vs. compile:
// the scanner and compiler each build an independent Graph over their own
// NodeFactory.
type Graph struct {
	logger   *diagnostics.Logger
	tracking TrackingLevel

	marked map[string]Node
	order  []Node
	queue  []Node

	conditionalsByTrigger map[string][]pendingConditional
	dynamicNodes          []Node
	dynamicWaveStart      int

	edges      []EdgeRecord
	firstEdges map[string]bool // Key() already recorded, for TrackFirstEdge
}

// New builds an empty Graph.
func New(logger *diagnostics.Logger, tracking TrackingLevel) *Graph {
	return &Graph{
		logger:                logger,
		tracking:              tracking,
		marked:                make(map[string]Node),
		conditionalsByTrigger: make(map[string][]pendingConditional),
		firstEdges:            make(map[string]bool),
	}
}

// AddRoot marks n unconditionally, as every root is marked at start.
func (g *Graph) AddRoot(n Node, reason string) {
	g.mark(n, reason, nil)
}

// MarkedNodeList is the append-only, order-preserving view of everything
// marked so far.
func (g *Graph) MarkedNodeList() []Node {
	out := make([]Node, len(g.order))
	copy(out, g.order)
	return out
}

// IsMarked reports whether n has already been marked.
func (g *Graph) IsMarked(n Node) bool {
	_, ok := g.marked[n.Key()]
	return ok
}

// Edges returns the retained edge provenance, per the graph's TrackingLevel.
func (g *Graph) Edges() []EdgeRecord {
	out := make([]EdgeRecord, len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *Graph) mark(n Node, reason string, via Node) bool {
	if n == nil {
		return false
	}
	key := n.Key()
	if _, ok := g.marked[key]; ok {
		if g.tracking == TrackAll {
			g.recordEdge(via, n, reason)
		}
		return false
	}
	g.marked[key] = n
	g.order = append(g.order, n)
	g.queue = append(g.queue, n)
	g.recordEdge(via, n, reason)
	return true
}

func (g *Graph) recordEdge(from, to Node, reason string) {
	switch g.tracking {
	case TrackNone:
		return
	case TrackFirstEdge:
		if g.firstEdges[to.Key()] {
			return
		}
		g.firstEdges[to.Key()] = true
	}
	g.edges = append(g.edges, EdgeRecord{From: from, To: to, Reason: reason})
}

// ComputeMarkedNodes runs the work-queue marking algorithm to a fixed point
// and returns the final
// discovery-ordered marked list.
func (g *Graph) ComputeMarkedNodes() []Node {
	for {
		progressed := g.drainQueue()
		if g.runDynamicWave() {
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return g.MarkedNodeList()
}

func (g *Graph) drainQueue() bool {
	progressed := false
	for len(g.queue) > 0 {
		n := g.queue[0]
		g.queue = g.queue[1:]
		g.process(n)
		progressed = true
	}
	return progressed
}

func (g *Graph) process(n Node) {
	// Step 1: static dependencies.
	deps, err := n.StaticDependencies(g)
	if err != nil {
		g.logger.Warn(codeOf(err), "%s: static dependency evaluation failed, degrading to a throwing stub: %s", n.Key(), err.Error())
		deps = nil
	}
	for _, d := range deps {
		g.mark(d.Target, d.Reason, n)
	}

	// Step 2: fire any conditional edges already registered with n as their
	// trigger, by nodes processed before n was marked.
	if pending, ok := g.conditionalsByTrigger[n.Key()]; ok {
		for _, pc := range pending {
			g.mark(pc.target, pc.reason, pc.holder)
		}
		delete(g.conditionalsByTrigger, n.Key())
	}

	// Step 3: n's own conditional edges. Fire immediately if the trigger is
	// already marked (symmetric with step 2); otherwise register for later.
	if n.HasConditionalStaticDependencies() {
		conds, err := n.ConditionalDependencies(g)
		if err != nil {
			g.logger.Warn(codeOf(err), "%s: conditional dependency evaluation failed, degrading to a throwing stub: %s", n.Key(), err.Error())
			conds = nil
		}
		for _, c := range conds {
			if g.IsMarked(c.Trigger) {
				g.mark(c.Target, c.Reason, n)
				continue
			}
			key := c.Trigger.Key()
			g.conditionalsByTrigger[key] = append(g.conditionalsByTrigger[key], pendingConditional{holder: n, target: c.Target, reason: c.Reason})
		}
	}

	// Step 4: register dynamic producers for the next wave.
	if n.HasDynamicDependencies() {
		g.dynamicNodes = append(g.dynamicNodes, n)
	}
}

// codeOf recovers the diagnostics.Code carried by a type-system failure, so
// a degraded node's warning line still reports the right category; any
// error shape the graph doesn't recognise is logged as InvalidProgram.
func codeOf(err error) diagnostics.Code {
	if tse, ok := err.(*diagnostics.TypeSystemError); ok {
		return tse.Code
	}
	return diagnostics.InvalidProgram
}

// runDynamicWave asks every registered dynamic producer for new edges given
// everything marked since the previous wave. Returns
// whether it produced any new marks; newly marked nodes are themselves
// processed by the next drainQueue pass.
func (g *Graph) runDynamicWave() bool {
	if len(g.dynamicNodes) == 0 {
		return false
	}
	firstNew := g.dynamicWaveStart
	g.dynamicWaveStart = len(g.order)
	marked := g.MarkedNodeList()

	progressed := false
	for _, dn := range g.dynamicNodes {
		deps, err := dn.SearchDynamicDependencies(g, marked, firstNew)
		if err != nil {
			g.logger.Warn(codeOf(err), "%s: dynamic dependency search failed, skipping this wave: %s", dn.Key(), err.Error())
			continue
		}
		for _, d := range deps {
			if g.mark(d.Target, d.Reason, dn) {
				progressed = true
			}
		}
	}
	return progressed
}
