package nodes

import (
	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/typesystem"
)

// externMethodSymbolNode and externalTypeNode are leaves: whatever the
// module group says is out of scope carries no outgoing static edges of its
// own (the caller at the boundary still pays for the call/reference, but
// nothing further is pulled in locally).
type externMethodSymbolNode struct {
	key string
	m   typesystem.MethodDesc
}

func (n *externMethodSymbolNode) Key() string { return n.key }
func (n *externMethodSymbolNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	return nil, nil
}
func (n *externMethodSymbolNode) HasConditionalStaticDependencies() bool { return false }
func (n *externMethodSymbolNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *externMethodSymbolNode) HasDynamicDependencies() bool { return false }
func (n *externMethodSymbolNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

type externalTypeNode struct {
	key string
	t   typesystem.TypeDesc
}

func (n *externalTypeNode) Key() string { return n.key }
func (n *externalTypeNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	return nil, nil
}
func (n *externalTypeNode) HasConditionalStaticDependencies() bool { return false }
func (n *externalTypeNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *externalTypeNode) HasDynamicDependencies() bool { return false }
func (n *externalTypeNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// readyToRunHelperNode is a fixed runtime helper reference: its symbol comes
// from internal/helpergen's binding table at codegen time, not from marking
// further dependencies here.
type readyToRunHelperNode struct {
	key      string
	helperID string
	target   typesystem.TypeDesc
}

func (n *readyToRunHelperNode) Key() string { return n.key }
func (n *readyToRunHelperNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	return nil, nil
}
func (n *readyToRunHelperNode) HasConditionalStaticDependencies() bool { return false }
func (n *readyToRunHelperNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *readyToRunHelperNode) HasDynamicDependencies() bool { return false }
func (n *readyToRunHelperNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// scannedMethodNode is the lightweight scan-time stand-in for a method body:
// the body itself is never imported. Its dependencies are the types in its
// own signature plus, when the factory has a ScanBodyProvider, that
// provider's call/type/helper summary for the method, a conservative
// closure cheap enough to compute for every method up front.
type scannedMethodNode struct {
	f   *Factory
	key string
	m   typesystem.MethodDesc
}

func (n *scannedMethodNode) Key() string { return n.key }

func (n *scannedMethodNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	sig := n.m.Signature()
	deps := make([]depgraph.Dependency, 0, len(sig.Params)+1)
	deps = append(deps, depgraph.Dependency{
		Target: n.f.NecessaryTypeSymbol(sig.ReturnType),
		Reason: "return-type",
	})
	for _, p := range sig.Params {
		deps = append(deps, depgraph.Dependency{Target: n.f.NecessaryTypeSymbol(p), Reason: "parameter-type"})
	}
	if owner := n.m.OwningType(); owner != nil {
		deps = append(deps, depgraph.Dependency{Target: n.f.NecessaryTypeSymbol(owner), Reason: "owning-type"})
	}

	// Pull in the same lightweight body-importer summary a compiling-mode
	// MethodWithGCInfo node gets from the real backend, so the scanner's
	// closure is a conservative superset of whatever the compiler will
	// later request (spec §4.7's oracle property, invariant 6).
	if n.f.scanBodies != nil {
		if body, ok := n.f.scanBodies.ScanBody(n.m); ok && !body.RequiresRuntimeJit {
			for _, call := range body.Calls {
				deps = append(deps, depgraph.Dependency{Target: n.f.MethodEntrypoint(call), Reason: "calls"})
			}
			for _, vcall := range body.VirtualCalls {
				deps = append(deps, depgraph.Dependency{Target: n.f.VirtualMethodUse(vcall), Reason: "virtual-call"})
			}
			for _, gvcall := range body.GenericVirtualCalls {
				deps = append(deps, depgraph.Dependency{Target: n.f.GenericVirtualMethodUse(gvcall), Reason: "generic-virtual-call"})
			}
			for _, t := range body.Types {
				deps = append(deps, depgraph.Dependency{Target: n.f.ConstructedTypeSymbol(t), Reason: "constructs"})
			}
			for _, h := range body.Helpers {
				deps = append(deps, depgraph.Dependency{Target: n.f.ReadyToRunHelper(h, nil), Reason: "helper-call"})
			}
		}
	}
	return deps, nil
}

func (n *scannedMethodNode) HasConditionalStaticDependencies() bool { return false }
func (n *scannedMethodNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *scannedMethodNode) HasDynamicDependencies() bool { return false }
func (n *scannedMethodNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// methodWithGCInfoNode is the heavy compile-time node: its dependency
// computation actually invokes the codegen backend.
type methodWithGCInfoNode struct {
	f   *Factory
	key string
	m   typesystem.MethodDesc
}

func (n *methodWithGCInfoNode) Key() string { return n.key }

func (n *methodWithGCInfoNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	result, err := n.f.backend.CompileMethod(n.m)
	if err != nil {
		return nil, err
	}
	n.f.recordResult(n.key, result)
	deps := make([]depgraph.Dependency, 0, len(result.Calls)+len(result.VirtualCalls)+len(result.GenericVirtualCalls)+len(result.Types)+len(result.HelperID))
	for _, call := range result.Calls {
		deps = append(deps, depgraph.Dependency{Target: n.f.MethodEntrypoint(call), Reason: "calls"})
	}
	for _, vcall := range result.VirtualCalls {
		deps = append(deps, depgraph.Dependency{Target: n.f.VirtualMethodUse(vcall), Reason: "virtual-call"})
	}
	for _, gvcall := range result.GenericVirtualCalls {
		deps = append(deps, depgraph.Dependency{Target: n.f.GenericVirtualMethodUse(gvcall), Reason: "generic-virtual-call"})
	}
	for _, t := range result.Types {
		deps = append(deps, depgraph.Dependency{Target: n.f.ConstructedTypeSymbol(t), Reason: "constructs"})
	}
	for _, h := range result.HelperID {
		deps = append(deps, depgraph.Dependency{Target: n.f.ReadyToRunHelper(h, nil), Reason: "helper-call"})
	}
	return deps, nil
}

func (n *methodWithGCInfoNode) HasConditionalStaticDependencies() bool { return false }
func (n *methodWithGCInfoNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *methodWithGCInfoNode) HasDynamicDependencies() bool { return false }
func (n *methodWithGCInfoNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// shadowConcreteMethodNode tracks the dictionary-driven dependencies of one
// instantiation while pointing at the shared canonical body.
type shadowConcreteMethodNode struct {
	f       *Factory
	key     string
	m       typesystem.MethodDesc
	instCtx typesystem.TypeDesc
}

func (n *shadowConcreteMethodNode) Key() string { return n.key }

func (n *shadowConcreteMethodNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	deps := []depgraph.Dependency{
		{Target: n.f.CanonicalEntrypoint(n.m), Reason: "shares-canonical-body"},
		{Target: n.f.ConstructedTypeSymbol(n.instCtx), Reason: "dictionary-owning-type"},
	}
	return deps, nil
}

func (n *shadowConcreteMethodNode) HasConditionalStaticDependencies() bool { return false }
func (n *shadowConcreteMethodNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *shadowConcreteMethodNode) HasDynamicDependencies() bool { return false }
func (n *shadowConcreteMethodNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// constructedTypeNode is a type that is actually instantiated: its base
// type and runtime interfaces are implied ConstructedType dependencies, and
// so is its VTable for non-array types.
type constructedTypeNode struct {
	f   *Factory
	key string
	t   typesystem.TypeDesc
}

func (n *constructedTypeNode) Key() string { return n.key }

func (n *constructedTypeNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	var deps []depgraph.Dependency
	if base := n.t.BaseType(); base != nil {
		deps = append(deps, depgraph.Dependency{Target: n.f.ConstructedTypeSymbol(base), Reason: "base-type"})
	}
	for _, iface := range n.t.RuntimeInterfaces() {
		deps = append(deps, depgraph.Dependency{Target: n.f.ConstructedTypeSymbol(iface), Reason: "runtime-interface"})
	}
	if _, isArray := n.t.(*typesystem.ArrayType); !isArray {
		deps = append(deps, depgraph.Dependency{Target: n.f.VTable(n.t), Reason: "vtable"})
		deps = append(deps, depgraph.Dependency{Target: n.f.InterfaceDispatchMap(n.t), Reason: "interface-dispatch-map"})
	}
	deps = append(deps, n.f.reflectDeps(n.t)...)
	return deps, nil
}

func (n *constructedTypeNode) HasConditionalStaticDependencies() bool { return false }
func (n *constructedTypeNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *constructedTypeNode) HasDynamicDependencies() bool { return false }
func (n *constructedTypeNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// necessaryTypeNode is the weaker claim: t must merely exist, so only its
// base-type chain is pulled in, never a VTable.
type necessaryTypeNode struct {
	f   *Factory
	key string
	t   typesystem.TypeDesc
}

func (n *necessaryTypeNode) Key() string { return n.key }

func (n *necessaryTypeNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	var deps []depgraph.Dependency
	if base := n.t.BaseType(); base != nil {
		deps = append(deps, depgraph.Dependency{Target: n.f.NecessaryTypeSymbol(base), Reason: "base-type"})
	}
	return deps, nil
}

func (n *necessaryTypeNode) HasConditionalStaticDependencies() bool { return false }
func (n *necessaryTypeNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *necessaryTypeNode) HasDynamicDependencies() bool { return false }
func (n *necessaryTypeNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// vtableNode depends on the dispatch target of every slot t's chain
// introduces.
type vtableNode struct {
	f   *Factory
	key string
	t   typesystem.TypeDesc
}

func (n *vtableNode) Key() string { return n.key }

func (n *vtableNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	slots, err := n.f.ctx.EnumAllVirtualSlots(n.t)
	if err != nil {
		return nil, err
	}
	var deps []depgraph.Dependency
	for _, slot := range slots {
		target, err := n.f.ctx.FindVirtualFunctionTargetMethodOnObjectType(slot, n.t)
		if err != nil {
			return nil, err
		}
		if target == nil {
			continue
		}
		deps = append(deps, depgraph.Dependency{Target: n.f.MethodEntrypoint(target), Reason: "vtable-slot"})
	}
	return deps, nil
}

func (n *vtableNode) HasConditionalStaticDependencies() bool { return false }
func (n *vtableNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *vtableNode) HasDynamicDependencies() bool { return false }
func (n *vtableNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// interfaceDispatchMapNode resolves every interface t implements to its
// concrete implementing method.
// interfaceDispatchMapNode is the per-type map from each interface slot t
// implements to its concrete override. Resolution is unconditional (the
// dispatch map itself always exists once t is constructed), but each
// resolved override only becomes a live MethodEntrypoint conditionally, on
// the matching VirtualMethodUse(ifaceMethod) also being marked (spec §8 S2,
// invariant 8): a type can be constructed and appear in a dispatch map
// without every one of its interface overrides having been compiled, if no
// call site anywhere actually dispatches through that interface method.
type interfaceDispatchMapNode struct {
	f   *Factory
	key string
	t   typesystem.TypeDesc
}

func (n *interfaceDispatchMapNode) Key() string { return n.key }

func (n *interfaceDispatchMapNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	return nil, nil
}

func (n *interfaceDispatchMapNode) HasConditionalStaticDependencies() bool { return true }

func (n *interfaceDispatchMapNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	var deps []depgraph.ConditionalDependency
	for _, iface := range n.t.RuntimeInterfaces() {
		ifaceSlots, err := n.f.ctx.EnumAllVirtualSlots(iface)
		if err != nil {
			return nil, err
		}
		for _, ifaceMethod := range ifaceSlots {
			target, err := n.f.ctx.ResolveInterfaceMethodToVirtualMethodOnType(ifaceMethod, n.t)
			if err != nil {
				return nil, err
			}
			if target == nil {
				continue
			}
			deps = append(deps, depgraph.ConditionalDependency{
				Trigger: n.f.VirtualMethodUse(ifaceMethod),
				Target:  n.f.MethodEntrypoint(target),
				Reason:  "interface-dispatch",
			})
		}
	}
	return deps, nil
}

func (n *interfaceDispatchMapNode) HasDynamicDependencies() bool { return false }
func (n *interfaceDispatchMapNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// virtualMethodUseNode is the trigger half of the conditional edge above: it
// carries no dependencies of its own and is marked only when some method
// body's conservative summary (scan or compile) names ifaceMethod as a
// virtual-call target.
type virtualMethodUseNode struct {
	key string
}

func (n *virtualMethodUseNode) Key() string { return n.key }
func (n *virtualMethodUseNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	return nil, nil
}
func (n *virtualMethodUseNode) HasConditionalStaticDependencies() bool { return false }
func (n *virtualMethodUseNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *virtualMethodUseNode) HasDynamicDependencies() bool { return false }
func (n *virtualMethodUseNode) SearchDynamicDependencies(*depgraph.Graph, []depgraph.Node, int) ([]depgraph.Dependency, error) {
	return nil, nil
}

// genericVirtualMethodUseNode is the dynamic counterpart to
// virtualMethodUseNode: a call site dispatching virtually through slot, an
// open virtual method declared on a generic definition, where the closed
// instantiation of the receiver isn't known until scanning discovers it.
// Unlike an interface dispatch map (whose implementing types are fixed once
// the map's owner is constructed), the set of live instantiations of a
// generic type only grows as scanning proceeds, so resolution can't be
// expressed as a fixed list of conditional edges computed once: it has to
// re-run against the whole marked set every wave, registering as a dynamic
// producer instead.
type genericVirtualMethodUseNode struct {
	f          *Factory
	key        string
	slot       typesystem.MethodDesc
	genericDef *typesystem.DefType
}

func (n *genericVirtualMethodUseNode) Key() string { return n.key }
func (n *genericVirtualMethodUseNode) StaticDependencies(*depgraph.Graph) ([]depgraph.Dependency, error) {
	return nil, nil
}
func (n *genericVirtualMethodUseNode) HasConditionalStaticDependencies() bool { return false }
func (n *genericVirtualMethodUseNode) ConditionalDependencies(*depgraph.Graph) ([]depgraph.ConditionalDependency, error) {
	return nil, nil
}
func (n *genericVirtualMethodUseNode) HasDynamicDependencies() bool { return true }

// SearchDynamicDependencies scans only the nodes newly marked since the
// previous wave (markedNodes[firstNewIndex:], the delta the producer
// consumes per the read-only monotone view it's handed) for a
// ConstructedType of some closed instantiation of genericDef, and resolves
// slot's dispatch target on that instantiation.
func (n *genericVirtualMethodUseNode) SearchDynamicDependencies(g *depgraph.Graph, markedNodes []depgraph.Node, firstNewIndex int) ([]depgraph.Dependency, error) {
	if firstNewIndex >= len(markedNodes) {
		return nil, nil
	}
	var deps []depgraph.Dependency
	for _, mn := range markedNodes[firstNewIndex:] {
		ct, ok := mn.(*constructedTypeNode)
		if !ok {
			continue
		}
		inst, ok := ct.t.(*typesystem.InstantiatedType)
		if !ok || inst.Def != n.genericDef {
			continue
		}
		target, err := n.f.ctx.FindVirtualFunctionTargetMethodOnObjectType(n.slot, inst)
		if err != nil {
			return nil, err
		}
		if target == nil {
			continue
		}
		deps = append(deps, depgraph.Dependency{Target: n.f.MethodEntrypoint(target), Reason: "generic-virtual-dispatch"})
	}
	return deps, nil
}
