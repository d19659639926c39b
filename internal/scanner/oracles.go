package scanner

import (
	"github.com/aot-native/ilc/internal/nodes"
	"github.com/aot-native/ilc/internal/typesystem"
)

// VTableLayout is the exact ordered list of vtable slots the scanner saw
// used for one locally-owned type.
type VTableLayout struct {
	Type  typesystem.TypeDesc
	Slots []typesystem.MethodDesc
}

// VTableLayoutFor looks up t's layout. found is false when t never got a
// precise layout (outside the local module group, or never marked): the
// compiler must fall back to a lazy/default layout rather than trust an
// empty slot list as "no virtual methods".
func (r *ScanResults) VTableLayoutFor(t typesystem.TypeDesc) (layout *VTableLayout, found bool) {
	layout, found = r.VTables[typesystem.TypeKey(t)]
	return layout, found
}

func buildVTableLayouts(ctx *typesystem.Context, types []typesystem.TypeDesc) map[string]*VTableLayout {
	out := make(map[string]*VTableLayout, len(types))
	for _, t := range types {
		slots, err := ctx.EnumAllVirtualSlots(t)
		if err != nil {
			continue
		}
		layout := &VTableLayout{Type: t}
		for _, slot := range slots {
			target, err := ctx.FindVirtualFunctionTargetMethodOnObjectType(slot, t)
			if err != nil || target == nil {
				continue
			}
			layout.Slots = append(layout.Slots, target)
		}
		out[typesystem.TypeKey(t)] = layout
	}
	return out
}

// DictionaryEntry is one dictionary slot a generic context's shadow methods
// actually requested: either the context's own type handle, or a canonical
// method handle reached through it.
type DictionaryEntry struct {
	Kind   string // "type-handle" or "method-handle"
	Type   typesystem.TypeDesc
	Method typesystem.MethodDesc
}

// DictionaryLayout is the ordered, deduplicated set of dictionary entries
// one generic instantiation context requested.
type DictionaryLayout struct {
	Context typesystem.TypeDesc
	Entries []DictionaryEntry

	seen map[string]bool
}

func recordDictionaryEntry(r *ScanResults, pair nodes.ShadowConcretePair) {
	key := typesystem.TypeKey(pair.InstantiationContext)
	layout, ok := r.Dictionaries[key]
	if !ok {
		layout = &DictionaryLayout{Context: pair.InstantiationContext, seen: make(map[string]bool)}
		r.Dictionaries[key] = layout
	}

	typeHandleKey := "type:" + key
	if !layout.seen[typeHandleKey] {
		layout.seen[typeHandleKey] = true
		layout.Entries = append(layout.Entries, DictionaryEntry{Kind: "type-handle", Type: pair.InstantiationContext})
	}

	methodHandleKey := "method:" + typesystem.MethodKey(pair.Method)
	if !layout.seen[methodHandleKey] {
		layout.seen[methodHandleKey] = true
		layout.Entries = append(layout.Entries, DictionaryEntry{Kind: "method-handle", Method: pair.Method})
	}
}

// DevirtualizationInfo records which locally-constructed types are bases of
// some other constructed type; anything not in that set is effectively
// sealed and dispatch through it may be devirtualised.
type DevirtualizationInfo struct {
	sealed map[string]bool
}

// IsSealed reports whether t is effectively sealed under this scan: no
// constructed type was seen deriving from it.
func (d *DevirtualizationInfo) IsSealed(t typesystem.TypeDesc) bool {
	def := defOf(t)
	if def == nil {
		return false
	}
	return d.sealed[typesystem.TypeKey(def)]
}

func defOf(t typesystem.TypeDesc) *typesystem.DefType {
	switch v := t.(type) {
	case *typesystem.DefType:
		return v
	case *typesystem.InstantiatedType:
		return v.Def
	default:
		return nil
	}
}

func buildDevirtualizationInfo(constructed []typesystem.TypeDesc) *DevirtualizationInfo {
	baseOfConstructed := make(map[*typesystem.DefType]bool)
	everyDef := make(map[*typesystem.DefType]bool)

	for _, t := range constructed {
		def := defOf(t)
		if def == nil {
			continue
		}
		everyDef[def] = true
		for b := t.BaseType(); b != nil; b = b.BaseType() {
			bd := defOf(b)
			if bd == nil {
				break
			}
			baseOfConstructed[bd] = true
		}
	}

	sealed := make(map[string]bool, len(everyDef))
	for def := range everyDef {
		sealed[typesystem.TypeKey(def)] = def.Context().IsEffectivelySealed(def, baseOfConstructed)
	}
	return &DevirtualizationInfo{sealed: sealed}
}

// InliningPolicy decides whether a call site may be inlined: the callee's
// owning type must have been constructed, or the callee itself must be
// static or declared on a value type (neither needs a constructed owner to
// be safely inlined).
type InliningPolicy struct {
	constructedTypeKeys map[string]bool
}

// CanInline reports whether callee is inlineable under this scan.
func (p *InliningPolicy) CanInline(callee typesystem.MethodDesc) bool {
	if callee.IsStatic() {
		return true
	}
	owner := callee.OwningType()
	if owner == nil {
		return true
	}
	if owner.Flags().IsValueType {
		return true
	}
	return p.constructedTypeKeys[typesystem.TypeKey(owner)]
}

func buildInliningPolicy(constructed []typesystem.TypeDesc) *InliningPolicy {
	keys := make(map[string]bool, len(constructed))
	for _, t := range constructed {
		keys[typesystem.TypeKey(t)] = true
	}
	return &InliningPolicy{constructedTypeKeys: keys}
}
