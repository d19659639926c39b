package typesystem

import "testing"

func virtualMethod(ctx *Context, owner *DefType, name string, overrides *EcmaMethod) *EcmaMethod {
	m := &EcmaMethod{
		ctx:      ctx,
		Owner:    owner,
		Name_:    name,
		Sig:      &MethodSignature{ReturnType: owner},
		Virtual_: true,
		Overrides: overrides,
	}
	owner.DeclaredMethods = append(owner.DeclaredMethods, m)
	return m
}

func TestEnumAllVirtualSlotsBaseFirst(t *testing.T) {
	ctx := NewContext()
	mod := newTestModule(ctx, "Test.Module")
	base := simpleDef(ctx, mod, "Base", 0)
	derived := simpleDef(ctx, mod, "Derived", 0)
	derived.BaseTypeDef = base

	baseFoo := virtualMethod(ctx, base, "Foo", nil)
	virtualMethod(ctx, derived, "Foo", baseFoo) // override, introduces no new slot
	derivedBar := virtualMethod(ctx, derived, "Bar", nil)

	slots, err := ctx.EnumAllVirtualSlots(derived)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 introduced slots (Base.Foo, Derived.Bar), got %d: %v", len(slots), slots)
	}
	if slots[0].UnderlyingEcmaMethod() != baseFoo {
		t.Fatalf("expected base slot first, got %v", slots[0])
	}
	if slots[1].UnderlyingEcmaMethod() != derivedBar {
		t.Fatalf("expected derived's own slot second, got %v", slots[1])
	}
}

func TestFindVirtualFunctionTargetResolvesOverride(t *testing.T) {
	ctx := NewContext()
	mod := newTestModule(ctx, "Test.Module")
	base := simpleDef(ctx, mod, "Base", 0)
	derived := simpleDef(ctx, mod, "Derived", 0)
	derived.BaseTypeDef = base

	baseFoo := virtualMethod(ctx, base, "Foo", nil)
	derivedFoo := virtualMethod(ctx, derived, "Foo", baseFoo)

	target, err := ctx.FindVirtualFunctionTargetMethodOnObjectType(baseFoo, derived)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target == nil || target.UnderlyingEcmaMethod() != derivedFoo {
		t.Fatalf("expected override Derived.Foo, got %v", target)
	}

	// Dispatching on Base itself (no override present) must return Base.Foo.
	targetOnBase, err := ctx.FindVirtualFunctionTargetMethodOnObjectType(baseFoo, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if targetOnBase == nil || targetOnBase.UnderlyingEcmaMethod() != baseFoo {
		t.Fatalf("expected Base.Foo on Base, got %v", targetOnBase)
	}
}

func TestIsEffectivelySealed(t *testing.T) {
	ctx := NewContext()
	mod := newTestModule(ctx, "Test.Module")
	base := simpleDef(ctx, mod, "Base", 0)
	leaf := simpleDef(ctx, mod, "Leaf", 0)
	leaf.BaseTypeDef = base

	baseOfConstructed := map[*DefType]bool{base: true} // Leaf derives from a constructed base, but nothing derives from Leaf

	if ctx.IsEffectivelySealed(base, baseOfConstructed) {
		t.Fatalf("Base is base-of-constructed, must not be sealed")
	}
	if !ctx.IsEffectivelySealed(leaf, baseOfConstructed) {
		t.Fatalf("Leaf has no derived types, must be effectively sealed")
	}

	leaf.IsAbstract = true
	if ctx.IsEffectivelySealed(leaf, baseOfConstructed) {
		t.Fatalf("an abstract type must never report as effectively sealed")
	}
}

func TestResolveInterfaceMethodToVirtualMethodOnType(t *testing.T) {
	ctx := NewContext()
	mod := newTestModule(ctx, "Test.Module")
	iface := simpleDef(ctx, mod, "IFoo", 0)
	iface.IsInterface = true
	ifaceM := virtualMethod(ctx, iface, "M", nil)

	s := simpleDef(ctx, mod, "S", 0)
	s.Interfaces = []*DefType{iface}
	sM := virtualMethod(ctx, s, "M", nil)

	target, err := ctx.ResolveInterfaceMethodToVirtualMethodOnType(ifaceM, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target == nil || target.UnderlyingEcmaMethod() != sM {
		t.Fatalf("expected S.M, got %v", target)
	}
}
