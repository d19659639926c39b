package ilimport

import (
	"testing"

	"github.com/aot-native/ilc/internal/typesystem"
)

func TestLoadModuleWiresBaseAndOverride(t *testing.T) {
	ctx := typesystem.NewContext()
	mod, err := LoadModule(ctx, ModuleSpec{
		Name: "Test.Module",
		Types: []TypeRow{
			{Namespace: "Test", Name: "Base"},
			{Namespace: "Test", Name: "Derived", BaseType: "Test.Base"},
			{Namespace: "Test", Name: "IFoo", IsInterface: true},
		},
		Methods: []MethodRow{
			{OwnerNamespace: "Test", OwnerName: "Base", Name: "Foo", Virtual: true, ReturnTypeName: "Test.Base"},
			{OwnerNamespace: "Test", OwnerName: "Derived", Name: "Foo", Virtual: true, Overrides: "Test.Base.Foo", ReturnTypeName: "Test.Base"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base, ok := mod.AllTypes()[0], true
	_ = ok
	if base.String() != "Test.Base" && mod.AllTypes()[1].String() != "Test.Base" {
		t.Fatalf("expected Test.Base to be loaded, got types %v", mod.AllTypes())
	}

	var derived *typesystem.DefType
	for _, d := range mod.AllTypes() {
		if d.Name == "Derived" {
			derived = d
		}
	}
	if derived == nil {
		t.Fatalf("Derived type not found")
	}
	if derived.BaseTypeDef == nil || derived.BaseTypeDef.Name != "Base" {
		t.Fatalf("expected Derived.BaseTypeDef to resolve to Base, got %v", derived.BaseTypeDef)
	}

	slots, err := ctx.EnumAllVirtualSlots(derived)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected Derived.Foo to reuse Base.Foo's slot (1 introduced slot total), got %d", len(slots))
	}
}

func TestLoadModuleUnknownBaseTypeFails(t *testing.T) {
	ctx := typesystem.NewContext()
	_, err := LoadModule(ctx, ModuleSpec{
		Name: "Test.Module",
		Types: []TypeRow{
			{Namespace: "Test", Name: "Derived", BaseType: "Test.Missing"},
		},
	})
	if err == nil {
		t.Fatalf("expected error for unresolved base type")
	}
}

func TestLoadModuleRVAField(t *testing.T) {
	ctx := typesystem.NewContext()
	mod, err := LoadModule(ctx, ModuleSpec{
		Name:        "Test.Module",
		DataSection: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Types: []TypeRow{
			{Namespace: "Test", Name: "Holder"},
			{Namespace: "Test", Name: "Int64", Primitive: typesystem.PrimitiveInt64},
		},
		Fields: []FieldRow{
			{OwnerNamespace: "Test", OwnerName: "Holder", Name: "Table", TypeName: "Test.Int64", HasRVA: true, RVA: 0},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var holder *typesystem.DefType
	for _, d := range mod.AllTypes() {
		if d.Name == "Holder" {
			holder = d
		}
	}
	if holder == nil || len(holder.DeclaredFields) != 1 {
		t.Fatalf("expected Holder to have 1 declared field, got %v", holder)
	}

	data, err := mod.ReadFieldRVA(holder.DeclaredFields[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(data))
	}
}
