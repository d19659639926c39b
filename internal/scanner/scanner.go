// Package scanner is the Scanner Pass: it drives a dependency graph with a
// lightweight body importer to discover the conservative closure of
// everything a compilation might touch, and distills that closure into four
// oracles the compiler pass trusts instead of re-deriving.
package scanner

import (
	"strings"

	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/modulegroup"
	"github.com/aot-native/ilc/internal/nodes"
	"github.com/aot-native/ilc/internal/roots"
	"github.com/aot-native/ilc/internal/typesystem"
)

// ScanResults is the scanner's output: the five member sets from the
// contract plus the four oracles, and it satisfies roots.ScanLiveness so a
// FilteredByScan provider can re-root a later, narrower pass against it.
type ScanResults struct {
	CompiledMethods     []typesystem.MethodDesc
	MethodsWithMetadata []typesystem.MethodDesc
	InvokableMethods    []typesystem.MethodDesc
	TypesWithMetadata   []typesystem.TypeDesc
	InvokableTypes      []typesystem.TypeDesc

	VTables      map[string]*VTableLayout
	Dictionaries map[string]*DictionaryLayout
	Devirt       *DevirtualizationInfo
	Inlining     *InliningPolicy

	liveMethods map[string]typesystem.MethodDesc
	liveTypes   map[string]typesystem.TypeDesc
	markedKeys  map[string]bool
}

func (r *ScanResults) IsMethodLive(m typesystem.MethodDesc) bool {
	_, ok := r.liveMethods[typesystem.MethodKey(m)]
	return ok
}

func (r *ScanResults) IsTypeLive(t typesystem.TypeDesc) bool {
	_, ok := r.liveTypes[typesystem.TypeKey(t)]
	return ok
}

// HasKey reports whether a node with this exact key was in the scanner's
// marked set, the building block of the compiler's subset check.
func (r *ScanResults) HasKey(key string) bool {
	return r.markedKeys[key]
}

// MethodForKey recovers a live method by its typesystem.MethodKey string,
// satisfying internal/codegen's Resolver: since the compiler pass's marked
// set is always a subset of the scan's, a remote backend's response can
// never name a method the scan didn't already intern here.
func (r *ScanResults) MethodForKey(key string) (typesystem.MethodDesc, bool) {
	m, ok := r.liveMethods[key]
	return m, ok
}

// TypeForKey is MethodForKey's type-side counterpart.
func (r *ScanResults) TypeForKey(key string) (typesystem.TypeDesc, bool) {
	t, ok := r.liveTypes[key]
	return t, ok
}

var _ roots.ScanLiveness = (*ScanResults)(nil)

// rootGraphService is the narrow roots.Service adapter over a Graph and a
// Factory: it exists only so root providers stay ignorant of which pass
// they're seeding.
type rootGraphService struct {
	g       *depgraph.Graph
	factory *nodes.Factory
	exports map[string]string // method key -> export name, gathered for completeness
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

// Run seeds a fresh scan-mode Graph/Factory from providers, drives it to a
// fixed point, and distills the four oracles plus the live-entity sets from
// the marked node list. bodies may be nil, meaning the closure is limited
// to roots plus signature/owning-type edges (no call-site traversal) —
// production callers should pass the same lightweight body importer the
// later compiler pass's backend consumes, so the compiler's marked set
// never outgrows what the scan already saw (spec §4.7, invariant 6).
func Run(ctx *typesystem.Context, group modulegroup.Group, logger *diagnostics.Logger, tracking depgraph.TrackingLevel, reflect nodes.ReflectabilityPolicy, bodies nodes.ScanBodyProvider, providers []roots.Provider) (*ScanResults, error) {
	g := depgraph.New(logger, tracking)
	factory := nodes.NewFactory(ctx, group, nodes.Scanning, nil, reflect, bodies)
	svc := &rootGraphService{g: g, factory: factory, exports: make(map[string]string)}

	for _, p := range providers {
		if err := p.AddCompilationRoots(svc); err != nil {
			return nil, err
		}
	}

	marked := g.ComputeMarkedNodes()
	return distill(ctx, factory, marked), nil
}

// distill classifies the marked node list into the five member sets and
// builds the four oracles, using the factory's entity registry to recover
// the TypeDesc/MethodDesc each node's key stands for. Classification is by
// key prefix first, since a ConstructedType and its VTable both resolve to
// the same TypeDesc through EntityForKey and must not be conflated.
func distill(ctx *typesystem.Context, factory *nodes.Factory, marked []depgraph.Node) *ScanResults {
	r := &ScanResults{
		VTables:      make(map[string]*VTableLayout),
		Dictionaries: make(map[string]*DictionaryLayout),
		liveMethods:  make(map[string]typesystem.MethodDesc),
		liveTypes:    make(map[string]typesystem.TypeDesc),
		markedKeys:   make(map[string]bool, len(marked)),
	}

	var constructedTypes []typesystem.TypeDesc
	var vtableTypes []typesystem.TypeDesc

	for _, n := range marked {
		key := n.Key()
		r.markedKeys[key] = true

		switch {
		case strings.HasPrefix(key, "MethodEntrypoint:"), strings.HasPrefix(key, "ExternMethodSymbol:"):
			m, ok := factory.MethodForKey(key)
			if !ok {
				continue
			}
			r.liveMethods[typesystem.MethodKey(m)] = m
			r.MethodsWithMetadata = append(r.MethodsWithMetadata, m)
			if strings.HasPrefix(key, "MethodEntrypoint:") {
				r.CompiledMethods = append(r.CompiledMethods, m)
			}
			if !m.IsAbstract() {
				r.InvokableMethods = append(r.InvokableMethods, m)
			}

		case strings.HasPrefix(key, "ConstructedType:"), strings.HasPrefix(key, "NecessaryType:"), strings.HasPrefix(key, "ExternalType:"):
			t, ok := factory.TypeForKey(key)
			if !ok {
				continue
			}
			r.liveTypes[typesystem.TypeKey(t)] = t
			r.TypesWithMetadata = append(r.TypesWithMetadata, t)
			r.InvokableTypes = append(r.InvokableTypes, t)
			if strings.HasPrefix(key, "ConstructedType:") {
				constructedTypes = append(constructedTypes, t)
			}

		case strings.HasPrefix(key, "VTable:"):
			if t, ok := factory.TypeForKey(key); ok {
				vtableTypes = append(vtableTypes, t)
			}

		case strings.HasPrefix(key, "ShadowConcreteMethod:"):
			if pair, ok := factory.ShadowConcreteForKey(key); ok {
				recordDictionaryEntry(r, pair)
			}
		}
	}

	r.VTables = buildVTableLayouts(ctx, vtableTypes)
	r.Devirt = buildDevirtualizationInfo(constructedTypes)
	r.Inlining = buildInliningPolicy(constructedTypes)
	return r
}
