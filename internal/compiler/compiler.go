// Package compiler is the Compiler Pass: it re-runs the dependency graph,
// this time with a compiling-mode NodeFactory wired to the real codegen
// backend, trusting the scan's oracles instead of re-deriving them, and
// enforces that its own marked set never exceeds what the scan already saw.
package compiler

import (
	"github.com/aot-native/ilc/internal/config"
	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/modulegroup"
	"github.com/aot-native/ilc/internal/nodes"
	"github.com/aot-native/ilc/internal/roots"
	"github.com/aot-native/ilc/internal/scanner"
	"github.com/aot-native/ilc/internal/typesystem"
)

// rootGraphService adapts a (Graph, Factory) pair to roots.Service, the same
// shape scanner's own private adapter uses. Duplicated rather than shared
// because the two passes own distinct Graph/Factory pairs wired to distinct
// Modes, and neither pass's adapter should reach across into the other's.
type rootGraphService struct {
	g       *depgraph.Graph
	factory *nodes.Factory
	exports map[string]string
}

func (s *rootGraphService) AddMethodRoot(m typesystem.MethodDesc, reason string) {
	s.g.AddRoot(s.factory.MethodEntrypoint(m), reason)
}

func (s *rootGraphService) AddMethodRootWithExport(m typesystem.MethodDesc, reason, exportName string) {
	s.g.AddRoot(s.factory.MethodEntrypoint(m), reason)
	s.exports[typesystem.MethodKey(m)] = exportName
}

func (s *rootGraphService) AddTypeRoot(t typesystem.TypeDesc, reason string) {
	s.g.AddRoot(s.factory.ConstructedTypeSymbol(t), reason)
}

func (s *rootGraphService) AddReflectionRoot(entity any, reason string) {
	switch v := entity.(type) {
	case typesystem.MethodDesc:
		s.g.AddRoot(s.factory.MethodEntrypoint(v), reason)
	case typesystem.TypeDesc:
		s.g.AddRoot(s.factory.ConstructedTypeSymbol(v), reason)
	}
}

var _ roots.Service = (*rootGraphService)(nil)

// Result is the compiler pass's output: the final marked node list in
// discovery order (the topologically stable order the object writer
// requires) and the Factory that built it, so callers can recover compiled
// method bodies via Factory.ResultForKey.
type Result struct {
	Marked  []depgraph.Node
	Factory *nodes.Factory
	Exports map[string]string
}

// Run drives the compiler pass. scan may be nil to skip the oracle-subset
// check entirely (useful for ad-hoc single-method compiles in tests); in
// production every invocation supplies the prior scan's ScanResults.
func Run(
	ctx *typesystem.Context,
	group modulegroup.Group,
	logger *diagnostics.Logger,
	scan *scanner.ScanResults,
	backend nodes.Backend,
	reflect nodes.ReflectabilityPolicy,
	opts config.Options,
	tracking depgraph.TrackingLevel,
	providers []roots.Provider,
) (*Result, error) {
	wrapped := newPolicyBackend(backend, opts)

	g := depgraph.New(logger, tracking)
	factory := nodes.NewFactory(ctx, group, nodes.Compiling, wrapped, reflect, nil)
	svc := &rootGraphService{g: g, factory: factory, exports: make(map[string]string)}

	for _, p := range providers {
		if err := p.AddCompilationRoots(svc); err != nil {
			return nil, err
		}
	}

	marked := g.ComputeMarkedNodes()

	if scan != nil {
		if err := enforceSubset(scan, g, marked); err != nil {
			return nil, err
		}
	}

	return &Result{Marked: marked, Factory: factory, Exports: svc.exports}, nil
}
