package typesystem

import "testing"

func TestConvertToCanonFormIdempotent(t *testing.T) {
	ctx := NewContext()
	mod := newTestModule(ctx, "Test.Module")
	listDef := simpleDef(ctx, mod, "List", 1)
	stringDef := simpleDef(ctx, mod, "String", 0)

	list, err := ctx.MakeInstantiatedType(listDef, []TypeDesc{stringDef})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	once := ctx.ConvertToCanonForm(list, Specific)
	twice := ctx.ConvertToCanonForm(once, Specific)
	if once != twice {
		t.Fatalf("ConvertToCanonForm not idempotent: %v != %v", once, twice)
	}
}

func TestConvertToCanonFormPreservesValueTypesUnderSpecific(t *testing.T) {
	ctx := NewContext()
	mod := newTestModule(ctx, "Test.Module")
	listDef := simpleDef(ctx, mod, "List", 1)
	intDef := simpleDef(ctx, mod, "Int32", 0)
	intDef.IsValueType = true

	list, err := ctx.MakeInstantiatedType(listDef, []TypeDesc{intDef})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	canon := ctx.ConvertToCanonForm(list, Specific)
	it, ok := canon.(*InstantiatedType)
	if !ok {
		t.Fatalf("expected InstantiatedType, got %T", canon)
	}
	if it.Args[0] != TypeDesc(intDef) {
		t.Fatalf("Specific canonicalisation must preserve value-type arguments, got %v", it.Args[0])
	}
}

func TestConvertToCanonFormCollapsesUnderUniversal(t *testing.T) {
	ctx := NewContext()
	mod := newTestModule(ctx, "Test.Module")
	listDef := simpleDef(ctx, mod, "List", 1)
	intDef := simpleDef(ctx, mod, "Int32", 0)
	intDef.IsValueType = true

	list, err := ctx.MakeInstantiatedType(listDef, []TypeDesc{intDef})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	canon := ctx.ConvertToCanonForm(list, Universal)
	it, ok := canon.(*InstantiatedType)
	if !ok {
		t.Fatalf("expected InstantiatedType, got %T", canon)
	}
	if it.Args[0] != ctx.CanonSentinel(Universal) {
		t.Fatalf("Universal canonicalisation must collapse value-type arguments too")
	}
}

func TestConvertToCanonFormCommutesWithInstantiation(t *testing.T) {
	ctx := NewContext()
	mod := newTestModule(ctx, "Test.Module")
	listDef := simpleDef(ctx, mod, "List", 1)
	stringDef := simpleDef(ctx, mod, "String", 0)

	direct, err := ctx.MakeInstantiatedType(listDef, []TypeDesc{ctx.CanonSentinel(Specific)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := ctx.MakeInstantiatedType(listDef, []TypeDesc{stringDef})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	viaCanon := ctx.ConvertToCanonForm(list, Specific)

	if direct != viaCanon {
		t.Fatalf("canon of MakeInstantiatedType(def, args) must equal MakeInstantiatedType(def, map(canon, args))")
	}
}
