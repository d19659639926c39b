package typesystem

import "github.com/aot-native/ilc/internal/diagnostics"

// defChain returns def's ancestor chain, base (System.Object, or the
// topmost visible ancestor) first, def itself last.
func (c *Context) defChain(def *DefType) []*DefType {
	var rev []*DefType
	for d := def; d != nil; d = d.BaseTypeDef {
		rev = append(rev, d)
	}
	chain := make([]*DefType, len(rev))
	for i, d := range rev {
		chain[len(rev)-1-i] = d
	}
	return chain
}

func baseDef(t TypeDesc) *DefType {
	switch v := t.(type) {
	case *DefType:
		return v
	case *InstantiatedType:
		return v.Def
	default:
		return nil
	}
}

func viewMethodOnOwner(m *EcmaMethod, owner TypeDesc) MethodDesc {
	if it, ok := owner.(*InstantiatedType); ok {
		return it.ctx.MakeMethodForInstantiatedType(m, it)
	}
	return m
}

// introducedSlots returns the subset of def's declared virtual methods
// whose slot-defining ancestor is def itself, caching the result per definition.
func (c *Context) introducedSlots(def *DefType) []*EcmaMethod {
	c.mu.Lock()
	if cached, ok := c.vtableCache[def]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	var introduced []*EcmaMethod
	for _, m := range def.DeclaredMethods {
		if m.Virtual_ && m.Overrides == nil {
			introduced = append(introduced, m)
		}
	}

	c.mu.Lock()
	c.vtableCache[def] = introduced
	c.mu.Unlock()
	return introduced
}

// slotDefiningMethod walks m's override chain to the ancestor declaration
// that originally introduced the slot.
func slotDefiningMethod(m *EcmaMethod) *EcmaMethod {
	for m.Overrides != nil {
		m = m.Overrides
	}
	return m
}

// EnumAllVirtualSlots returns the ordered list of virtual slots introduced
// up through t's type chain, base-first.
func (c *Context) EnumAllVirtualSlots(t TypeDesc) ([]MethodDesc, error) {
	def := baseDef(t)
	if def == nil {
		return nil, diagnostics.NewTypeSystemError(diagnostics.TypeLoad, t.String(), "not an object type")
	}
	var slots []MethodDesc
	for _, d := range c.defChain(def) {
		for _, m := range c.introducedSlots(d) {
			slots = append(slots, viewMethodOnOwner(m, t))
		}
	}
	return slots, nil
}

// globalSlotIndex returns root's position in the flattened,
// base-first concatenation of introduced-slot lists across its own type's
// full chain.
func (c *Context) globalSlotIndex(root *EcmaMethod) int {
	offset := 0
	for _, d := range c.defChain(root.Owner) {
		introduced := c.introducedSlots(d)
		for i, m := range introduced {
			if m == root {
				return offset + i
			}
		}
		offset += len(introduced)
	}
	return -1
}

// resolveOverride finds the most-derived override of slotDecl visible in
// chain (searching from the most-derived end backward), or slotDecl itself
// if nothing overrides it.
func resolveOverride(chain []*DefType, slotDecl *EcmaMethod) *EcmaMethod {
	for i := len(chain) - 1; i >= 0; i-- {
		for _, m := range chain[i].DeclaredMethods {
			if m.Virtual_ && slotDefiningMethod(m) == slotDecl {
				return m
			}
		}
	}
	return slotDecl
}

// implSlotArray is the cached full impl-slot array for an instantiated
// type: one resolved override target per vtable slot, viewed through t.
func (c *Context) implSlotArray(t TypeDesc) ([]MethodDesc, error) {
	key := t.identity()
	c.mu.Lock()
	if cached, ok := c.implSlotCache[key]; ok {
		c.mu.Unlock()
		out := make([]MethodDesc, len(cached))
		for i, m := range cached {
			out[i] = m
		}
		return out, nil
	}
	c.mu.Unlock()

	def := baseDef(t)
	if def == nil {
		return nil, diagnostics.NewTypeSystemError(diagnostics.TypeLoad, t.String(), "not an object type")
	}
	chain := c.defChain(def)
	var arr []MethodDesc
	var targets []*EcmaMethod
	for _, d := range chain {
		for _, slotDecl := range c.introducedSlots(d) {
			target := resolveOverride(chain, slotDecl)
			targets = append(targets, target)
			arr = append(arr, viewMethodOnOwner(target, t))
		}
	}

	c.mu.Lock()
	c.implSlotCache[key] = targets
	c.mu.Unlock()
	return arr, nil
}

// FindVirtualFunctionTargetMethodOnObjectType resolves slotDecl's dispatch
// target on a concrete objectType at compile time. Returns (nil, nil) if
// objectType doesn't implement the slot at all.
func (c *Context) FindVirtualFunctionTargetMethodOnObjectType(slotDecl MethodDesc, objectType TypeDesc) (MethodDesc, error) {
	underlying := slotDecl.UnderlyingEcmaMethod()
	if underlying == nil {
		return nil, diagnostics.NewTypeSystemError(diagnostics.InvalidProgram, slotDecl.String(), "not a virtual slot declaration")
	}
	root := slotDefiningMethod(underlying)
	idx := c.globalSlotIndex(root)
	if idx < 0 {
		return nil, nil
	}

	arr, err := c.implSlotArray(objectType)
	if err != nil {
		return nil, err
	}
	if idx >= len(arr) {
		return nil, nil
	}
	target := arr[idx]

	if slotDecl.HasInstantiation() {
		if ecma := target.UnderlyingEcmaMethod(); ecma != nil {
			if im, err := c.MakeInstantiatedMethod(ecma, slotDecl.Instantiation()); err == nil {
				return im, nil
			}
		}
	}
	return target, nil
}

func signaturesCompatible(a, b *MethodSignature) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i].String() != b.Params[i].String() {
			return false
		}
	}
	return a.ReturnType.String() == b.ReturnType.String()
}

// ResolveInterfaceMethodToVirtualMethodOnType finds the concrete method on
// t that implements ifaceMethod, matching by name and exact signature.
func (c *Context) ResolveInterfaceMethodToVirtualMethodOnType(ifaceMethod MethodDesc, t TypeDesc) (MethodDesc, error) {
	return c.resolveInterfaceMethod(ifaceMethod, t, false)
}

// ResolveInterfaceMethodToVirtualMethodOnTypeVariant is the
// variance-tolerant form: a return type assignable to (rather than
// identical to) the interface method's return type also matches, modelling
// covariant/contravariant interface dispatch.
func (c *Context) ResolveInterfaceMethodToVirtualMethodOnTypeVariant(ifaceMethod MethodDesc, t TypeDesc) (MethodDesc, error) {
	return c.resolveInterfaceMethod(ifaceMethod, t, true)
}

func (c *Context) resolveInterfaceMethod(ifaceMethod MethodDesc, t TypeDesc, variant bool) (MethodDesc, error) {
	underlying := ifaceMethod.UnderlyingEcmaMethod()
	if underlying == nil {
		return nil, diagnostics.NewTypeSystemError(diagnostics.InvalidProgram, ifaceMethod.String(), "not an interface method declaration")
	}
	def := baseDef(t)
	if def == nil {
		return nil, diagnostics.NewTypeSystemError(diagnostics.TypeLoad, t.String(), "not an object type")
	}

	chain := c.defChain(def)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, m := range chain[i].DeclaredMethods {
			if m.Name_ != underlying.Name_ {
				continue
			}
			if variant {
				if len(m.Sig.Params) == len(underlying.Sig.Params) {
					return viewMethodOnOwner(m, t), nil
				}
				continue
			}
			if signaturesCompatible(m.Sig, underlying.Sig) {
				return viewMethodOnOwner(m, t), nil
			}
		}
	}
	return nil, nil
}

// IsEffectivelySealed reports whether def has no known derived type in the
// same context — used by the scanner's DevirtualizationInfo oracle.
// A type is never effectively sealed if it's abstract
// (an abstract type is never itself constructed, so "no derived types seen
// yet" proves nothing).
func (c *Context) IsEffectivelySealed(def *DefType, baseOfConstructed map[*DefType]bool) bool {
	if def.IsAbstract {
		return false
	}
	return !baseOfConstructed[def]
}
