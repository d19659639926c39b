// Package nodes is the Node Factory: an interning cache that
// maps type-system entities to depgraph nodes, encoding compilation policy
// — what kind of node represents what, and whether that node's body is
// scanned or compiled.
package nodes

import (
	"fmt"
	"sync"

	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/modulegroup"
	"github.com/aot-native/ilc/internal/typesystem"
)

// Mode selects which node subtype a keyed accessor yields: a cheap
// scan-time stand-in, or the heavy compile-time node that actually invokes
// codegen.
type Mode int

const (
	Scanning Mode = iota
	Compiling
)

// Backend is the narrow codegen contract a compiling-mode method node needs.
// internal/codegen provides the concrete implementations; this interface
// lives here (rather than nodes importing codegen) so internal/codegen can
// freely depend on internal/nodes' output types without a cycle.
type Backend interface {
	CompileMethod(m typesystem.MethodDesc) (CompileResult, error)
}

// Relocation is one fixup the object writer must apply against Code: an
// offset into Code, and the symbol key (a depgraph.Node.Key()) it resolves
// against once every marked node has a final address.
type Relocation struct {
	Offset int
	Target string
	Kind   string
}

// FrameInfo is the unwind/frame-layout information the runtime needs to walk
// a stack frame for this method without its source present.
type FrameInfo struct {
	StackSize  int
	SavedRegs  []string
	HasGCSlots bool
}

// CompileResult is everything a compiled method body produced: the code and
// its fixups for the object writer, and the touched entities that become
// outgoing static edges from its MethodWithGCInfo node.
type CompileResult struct {
	Code                []byte
	Relocs              []Relocation
	Frame               FrameInfo
	GCInfo              []byte
	Calls               []typesystem.MethodDesc
	VirtualCalls        []typesystem.MethodDesc
	GenericVirtualCalls []typesystem.MethodDesc
	Types               []typesystem.TypeDesc
	HelperID            []string
}

// ReflectabilityPolicy supplies the extra dependencies a type or method picks
// up from being reflectable; internal/metadata implements
// this without nodes needing to import it directly.
type ReflectabilityPolicy interface {
	DependenciesDueToReflectability(t typesystem.TypeDesc) []typesystem.TypeDesc
}

// ScanDeps is the conservative call/type/helper summary scan-mode method
// nodes pull from the same lightweight body importer a compiling-mode
// backend later consumes for real codegen (internal/codegen.BodyProvider's
// MethodBody carries the identical shape; codegen.AsScanBodyProvider adapts
// it to this interface). Calls are direct/static calls; VirtualCalls are
// interface or virtual-dispatch call sites, which only ever pull in a
// target conditionally on the receiver's constructed type (see
// Factory.VirtualMethodUse). GenericVirtualCalls are virtual-dispatch call
// sites through an open generic method, whose resolution depends on
// whichever closed instantiations get constructed over the course of
// scanning (see Factory.GenericVirtualMethodUse).
type ScanDeps struct {
	Calls               []typesystem.MethodDesc
	VirtualCalls        []typesystem.MethodDesc
	GenericVirtualCalls []typesystem.MethodDesc
	Types               []typesystem.TypeDesc
	Helpers             []string
	RequiresRuntimeJit  bool
}

// ScanBodyProvider supplies a method's ScanDeps during scanning, the same
// way a Backend's BodyProvider supplies a MethodBody during compilation.
type ScanBodyProvider interface {
	ScanBody(m typesystem.MethodDesc) (ScanDeps, bool)
}

// Factory is the Node Factory. Exactly one node exists per key within one
// Factory; the scanner and compiler each build
// their own Factory, so cross-pass identity is never required.
type Factory struct {
	ctx        *typesystem.Context
	group      modulegroup.Group
	mode       Mode
	backend    Backend
	reflect    ReflectabilityPolicy
	scanBodies ScanBodyProvider

	mu       sync.Mutex
	cache    map[string]depgraph.Node
	entities map[string]any // Key() -> the TypeDesc/MethodDesc a node represents
	results  map[string]CompileResult
}

// NewFactory builds a Node Factory. backend may be nil in Scanning mode
// (scan-time nodes never call it); reflect may be nil to mean "nothing is
// reflectable", matching the Empty metadata policy. scanBodies may be nil,
// in which case scan-mode method nodes fall back to signature/owner-type
// dependencies only (no call-site closure) — used by tests and ad-hoc
// single-method scans that don't need the full conservative closure.
func NewFactory(ctx *typesystem.Context, group modulegroup.Group, mode Mode, backend Backend, reflect ReflectabilityPolicy, scanBodies ScanBodyProvider) *Factory {
	return &Factory{
		ctx:        ctx,
		group:      group,
		mode:       mode,
		backend:    backend,
		reflect:    reflect,
		scanBodies: scanBodies,
		cache:      make(map[string]depgraph.Node),
		entities:   make(map[string]any),
		results:    make(map[string]CompileResult),
	}
}

func (f *Factory) memo(key string, build func() depgraph.Node) depgraph.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.cache[key]; ok {
		return existing
	}
	n := build()
	f.cache[key] = n
	return n
}

// recordEntity associates key with the type-system entity a node built for
// it represents, so a pass that only holds a depgraph.Node (via its marked
// list) can recover what it stands for without reaching into this
// package's unexported node types.
func (f *Factory) recordEntity(key string, entity any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[key] = entity
}

// EntityForKey returns the TypeDesc or MethodDesc backing a node's key, if
// this factory built it.
func (f *Factory) EntityForKey(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[key]
	return e, ok
}

// TypeForKey narrows EntityForKey to the TypeDesc case.
func (f *Factory) TypeForKey(key string) (typesystem.TypeDesc, bool) {
	e, ok := f.EntityForKey(key)
	if !ok {
		return nil, false
	}
	t, ok := e.(typesystem.TypeDesc)
	return t, ok
}

// MethodForKey narrows EntityForKey to the MethodDesc case.
func (f *Factory) MethodForKey(key string) (typesystem.MethodDesc, bool) {
	e, ok := f.EntityForKey(key)
	if !ok {
		return nil, false
	}
	m, ok := e.(typesystem.MethodDesc)
	return m, ok
}

// recordResult caches a compiled method's code/relocs/frame/GC info, once,
// the moment its MethodWithGCInfo node's static dependencies are computed.
func (f *Factory) recordResult(key string, result CompileResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[key] = result
}

// ResultForKey returns the cached CompileResult for a MethodEntrypoint key,
// if that method was actually compiled (methods left empty by
// RequiresRuntimeJit or a type-system failure have no entry here).
func (f *Factory) ResultForKey(key string) (CompileResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[key]
	return r, ok
}

func (f *Factory) reflectDeps(t typesystem.TypeDesc) []depgraph.Dependency {
	if f.reflect == nil {
		return nil
	}
	var out []depgraph.Dependency
	for _, dep := range f.reflect.DependenciesDueToReflectability(t) {
		out = append(out, depgraph.Dependency{Target: f.NecessaryTypeSymbol(dep), Reason: "reflectable-dependency"})
	}
	return out
}

// MethodEntrypoint is the entry node for a method: a local scan/compile node
// if the owning module group claims the body, otherwise an
// ExternMethodSymbol.
func (f *Factory) MethodEntrypoint(m typesystem.MethodDesc) depgraph.Node {
	key := "MethodEntrypoint:" + typesystem.MethodKey(m)
	f.recordEntity(key, m)
	return f.memo(key, func() depgraph.Node {
		if !f.group.ContainsMethodBody(m, false) {
			return &externMethodSymbolNode{key: "ExternMethodSymbol:" + typesystem.MethodKey(m), m: m}
		}
		if f.mode == Scanning {
			return &scannedMethodNode{f: f, key: key, m: m}
		}
		return &methodWithGCInfoNode{f: f, key: key, m: m}
	})
}

// CanonicalEntrypoint is the canonical-body node shared across every
// instantiation of a generic method.
// Non-generic methods have no instantiation to canonicalise and are their
// own canonical entrypoint.
func (f *Factory) CanonicalEntrypoint(m typesystem.MethodDesc) depgraph.Node {
	if im, ok := m.(*typesystem.InstantiatedMethod); ok {
		canon, err := f.ctx.ConvertMethodToCanonForm(im, typesystem.Specific)
		if err == nil {
			return f.MethodEntrypoint(canon)
		}
	}
	return f.MethodEntrypoint(m)
}

// ShadowConcretePair is the entity a ShadowConcreteMethod node's key
// resolves to: there is no single TypeDesc/MethodDesc that captures a
// "(method, instantiation context)" node, so it gets its own recovery path
// rather than overloading EntityForKey's TypeDesc/MethodDesc cases.
type ShadowConcretePair struct {
	Method               typesystem.MethodDesc
	InstantiationContext typesystem.TypeDesc
}

// ShadowConcreteForKey recovers the (method, instantiation context) pair
// behind a marked ShadowConcreteMethod node's key.
func (f *Factory) ShadowConcreteForKey(key string) (ShadowConcretePair, bool) {
	e, ok := f.EntityForKey(key)
	if !ok {
		return ShadowConcretePair{}, false
	}
	p, ok := e.(ShadowConcretePair)
	return p, ok
}

// ShadowConcreteMethod is the "(Method, ConcreteOwningType)" node: it tracks
// the dictionary-driven dependencies of one instantiation while statically
// depending on the shared canonical body.
func (f *Factory) ShadowConcreteMethod(m typesystem.MethodDesc, instantiationContext typesystem.TypeDesc) depgraph.Node {
	key := fmt.Sprintf("ShadowConcreteMethod:%s#%s", typesystem.MethodKey(m), typesystem.TypeKey(instantiationContext))
	f.recordEntity(key, ShadowConcretePair{Method: m, InstantiationContext: instantiationContext})
	return f.memo(key, func() depgraph.Node {
		return &shadowConcreteMethodNode{f: f, key: key, m: m, instCtx: instantiationContext}
	})
}

// ConstructedTypeSymbol is a type that is actually instantiated at runtime:
// its base type and runtime interfaces are implied ConstructedType
// dependencies, and so is its VTable for non-array types.
func (f *Factory) ConstructedTypeSymbol(t typesystem.TypeDesc) depgraph.Node {
	key := "ConstructedType:" + typesystem.TypeKey(t)
	f.recordEntity(key, t)
	return f.memo(key, func() depgraph.Node {
		if !f.group.ContainsType(t) {
			return &externalTypeNode{key: "ExternalType:" + typesystem.TypeKey(t), t: t}
		}
		return &constructedTypeNode{f: f, key: key, t: t}
	})
}

// NecessaryTypeSymbol is the weaker claim: t must exist for casts, metadata,
// or signatures, without requiring it be instantiated.
func (f *Factory) NecessaryTypeSymbol(t typesystem.TypeDesc) depgraph.Node {
	key := "NecessaryType:" + typesystem.TypeKey(t)
	f.recordEntity(key, t)
	return f.memo(key, func() depgraph.Node {
		if !f.group.ContainsType(t) {
			return &externalTypeNode{key: "ExternalType:" + typesystem.TypeKey(t), t: t}
		}
		return &necessaryTypeNode{f: f, key: key, t: t}
	})
}

// VTable is the per-type virtual dispatch table node, keyed off t's
// EnumAllVirtualSlots/FindVirtualFunctionTargetMethodOnObjectType results.
func (f *Factory) VTable(t typesystem.TypeDesc) depgraph.Node {
	key := "VTable:" + typesystem.TypeKey(t)
	f.recordEntity(key, t)
	return f.memo(key, func() depgraph.Node {
		return &vtableNode{f: f, key: key, t: t}
	})
}

// InterfaceDispatchMap resolves every interface t implements to its
// concrete implementing method, keyed per type. Each resolved entry is a
// conditional dependency on the corresponding VirtualMethodUse node (spec
// §8 S2): the override is only pulled in once some call site actually
// dispatches through that interface method, not merely because t is
// constructed.
func (f *Factory) InterfaceDispatchMap(t typesystem.TypeDesc) depgraph.Node {
	key := "InterfaceDispatchMap:" + typesystem.TypeKey(t)
	f.recordEntity(key, t)
	return f.memo(key, func() depgraph.Node {
		return &interfaceDispatchMapNode{f: f, key: key, t: t}
	})
}

// VirtualMethodUse is the trigger node for one interface/virtual method
// being invoked through dynamic dispatch somewhere in the program. It has
// no dependencies of its own; it exists purely so interfaceDispatchMapNode
// can condition an override's liveness on "this slot is actually called"
// rather than unconditionally on "the implementing type is constructed".
func (f *Factory) VirtualMethodUse(ifaceMethod typesystem.MethodDesc) depgraph.Node {
	key := "VirtualMethodUse:" + typesystem.MethodKey(ifaceMethod)
	f.recordEntity(key, ifaceMethod)
	return f.memo(key, func() depgraph.Node {
		return &virtualMethodUseNode{key: key}
	})
}

// GenericVirtualMethodUse is the dynamic-producer trigger node for a call
// site dispatching virtually through slot, a virtual method declared on an
// open generic definition. Once marked it registers with the graph as a
// dynamic dependency producer (spec §9 "dynamic dispatch in the graph"):
// every marking wave it re-resolves slot against whichever closed
// instantiations of its owning generic definition have been constructed so
// far, since that set only grows as scanning discovers new instantiations
// and can't be precomputed as a fixed conditional-edge list the way
// InterfaceDispatchMap's fixed implementer set can.
func (f *Factory) GenericVirtualMethodUse(slot typesystem.MethodDesc) depgraph.Node {
	key := "GenericVirtualMethodUse:" + typesystem.MethodKey(slot)
	f.recordEntity(key, slot)
	genericDef, _ := slot.OwningType().(*typesystem.DefType)
	return f.memo(key, func() depgraph.Node {
		return &genericVirtualMethodUseNode{f: f, key: key, slot: slot, genericDef: genericDef}
	})
}

// ReadyToRunHelper is keyed by (HelperId, target) and represents a fixed
// runtime helper reference resolved by internal/helpergen's binding table
// rather than compiled from a method body.
func (f *Factory) ReadyToRunHelper(helperID string, target typesystem.TypeDesc) depgraph.Node {
	targetKey := ""
	if target != nil {
		targetKey = typesystem.TypeKey(target)
	}
	key := fmt.Sprintf("ReadyToRunHelper:%s#%s", helperID, targetKey)
	if target != nil {
		f.recordEntity(key, target)
	}
	return f.memo(key, func() depgraph.Node {
		return &readyToRunHelperNode{key: key, helperID: helperID, target: target}
	})
}

// ExternMethodSymbol is a leaf reference to a method whose body the module
// group says lives outside this compilation.
func (f *Factory) ExternMethodSymbol(m typesystem.MethodDesc) depgraph.Node {
	key := "ExternMethodSymbol:" + typesystem.MethodKey(m)
	f.recordEntity(key, m)
	return f.memo(key, func() depgraph.Node {
		return &externMethodSymbolNode{key: key, m: m}
	})
}

// ExternalTypeNode is a leaf reference to a type resolved outside this
// compilation.
func (f *Factory) ExternalTypeNode(t typesystem.TypeDesc) depgraph.Node {
	key := "ExternalType:" + typesystem.TypeKey(t)
	f.recordEntity(key, t)
	return f.memo(key, func() depgraph.Node {
		return &externalTypeNode{key: key, t: t}
	})
}

// UnboxingStub builds the thunk node for calling an instance method through
// a boxed value type. Canonical instance methods route through a special
// unboxing thunk carrying an extra instantiation argument; ordinary generic
// instance methods get the plain unboxing stub.
func (f *Factory) UnboxingStub(m typesystem.MethodDesc, owner typesystem.TypeDesc) depgraph.Node {
	kind := "unboxing-stub"
	if f.ctx.IsCanonicalSubtype(owner, typesystem.Specific) {
		kind = "special-unboxing-thunk"
	}
	sm := f.ctx.MakeSyntheticMethod(owner, m.Name()+"$unbox", kind, m.Signature())
	key := "MethodEntrypoint:" + typesystem.MethodKey(sm)
	f.recordEntity(key, sm)
	return f.memo(key, func() depgraph.Node {
		// Same scanning/compiling split as MethodEntrypoint: in Compiling
		// mode the thunk must still go through the backend so its own
		// calls/types/helpers become real outgoing edges, not just a
		// signature-only scan node.
		if f.mode == Scanning {
			return &scannedMethodNode{f: f, key: key, m: sm}
		}
		return &methodWithGCInfoNode{f: f, key: key, m: sm}
	})
}
