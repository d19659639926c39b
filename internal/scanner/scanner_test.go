package scanner

import (
	"io"
	"testing"

	"github.com/aot-native/ilc/internal/codegen"
	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/modulegroup"
	"github.com/aot-native/ilc/internal/roots"
	"github.com/aot-native/ilc/internal/typesystem"
)

func newTestLogger() *diagnostics.Logger {
	return diagnostics.NewLogger(io.Discard, false)
}

func virtualMethod(ctx *typesystem.Context, owner *typesystem.DefType, name string, overrides *typesystem.EcmaMethod) *typesystem.EcmaMethod {
	m := typesystem.NewEcmaMethod(ctx, owner, name, &typesystem.MethodSignature{ReturnType: owner})
	m.Virtual_ = true
	m.Overrides = overrides
	owner.DeclaredMethods = append(owner.DeclaredMethods, m)
	return m
}

func TestScanMarksTransitiveClosureFromEntrypoint(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	widget := typesystem.NewDefType(ctx, mod, "Test", "Widget")
	mod.AddDefType("Test", "Widget", widget)
	gadget := typesystem.NewDefType(ctx, mod, "Test", "Gadget")
	mod.AddDefType("Test", "Gadget", gadget)

	entry := typesystem.NewEcmaMethod(ctx, widget, "Main", &typesystem.MethodSignature{ReturnType: gadget, Params: []typesystem.TypeDesc{widget}})

	group := modulegroup.NewSingleFile(ctx, "Test.Module")
	providers := []roots.Provider{&roots.SingleMethod{Method: entry}}

	results, err := Run(ctx, group, newTestLogger(), depgraph.TrackNone, nil, nil, providers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !results.IsMethodLive(entry) {
		t.Fatalf("entrypoint must be live")
	}
	if !results.IsTypeLive(widget) {
		t.Fatalf("owning type must be live")
	}
	if !results.IsTypeLive(gadget) {
		t.Fatalf("return type must be live via NecessaryType")
	}
}

func TestVTableLayoutCollectsResolvedOverrides(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	base := typesystem.NewDefType(ctx, mod, "Test", "Base")
	mod.AddDefType("Test", "Base", base)
	derived := typesystem.NewDefType(ctx, mod, "Test", "Derived")
	derived.BaseTypeDef = base
	mod.AddDefType("Test", "Derived", derived)

	baseFoo := virtualMethod(ctx, base, "Foo", nil)
	derivedFoo := virtualMethod(ctx, derived, "Foo", baseFoo)

	group := modulegroup.NewSingleFile(ctx, "Test.Module")
	// Roots alone don't construct the type; add a type root so VTable(derived) is marked.
	providers := []roots.Provider{rootTypeProvider{t: derived}}

	results, err := Run(ctx, group, newTestLogger(), depgraph.TrackNone, nil, nil, providers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	layout, found := results.VTableLayoutFor(derived)
	if !found {
		t.Fatalf("derived is locally owned, must have a precise layout")
	}
	if len(layout.Slots) != 1 {
		t.Fatalf("expected exactly 1 resolved slot, got %d: %v", len(layout.Slots), layout.Slots)
	}
	if layout.Slots[0].UnderlyingEcmaMethod() != derivedFoo {
		t.Fatalf("expected Derived.Foo to win dispatch, got %v", layout.Slots[0])
	}
}

// rootTypeProvider is a minimal test-only Provider rooting one type, since
// there is no exported type-rooting provider narrower than ReadyToRunLibrary.
type rootTypeProvider struct {
	t typesystem.TypeDesc
}

func (p rootTypeProvider) AddCompilationRoots(svc roots.Service) error {
	svc.AddTypeRoot(p.t, "test-root")
	return nil
}

func TestDevirtualizationInfoSealsLeafTypes(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	base := typesystem.NewDefType(ctx, mod, "Test", "Base")
	mod.AddDefType("Test", "Base", base)
	leaf := typesystem.NewDefType(ctx, mod, "Test", "Leaf")
	leaf.BaseTypeDef = base
	mod.AddDefType("Test", "Leaf", leaf)

	group := modulegroup.NewSingleFile(ctx, "Test.Module")
	providers := []roots.Provider{rootTypeProvider{t: leaf}}

	results, err := Run(ctx, group, newTestLogger(), depgraph.TrackNone, nil, nil, providers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results.Devirt.IsSealed(base) {
		t.Fatalf("Base is base-of-constructed (Leaf), must not be sealed")
	}
	if !results.Devirt.IsSealed(leaf) {
		t.Fatalf("Leaf has no derived constructed type, must be sealed")
	}
}

func TestInliningPolicyAllowsStaticAndValueTypeCallees(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	widget := typesystem.NewDefType(ctx, mod, "Test", "Widget")
	mod.AddDefType("Test", "Widget", widget)
	point := typesystem.NewDefType(ctx, mod, "Test", "Point")
	point.IsValueType = true
	mod.AddDefType("Test", "Point", point)

	staticMethod := typesystem.NewEcmaMethod(ctx, widget, "StaticOp", &typesystem.MethodSignature{ReturnType: widget})
	staticMethod.Static = true
	valueMethod := typesystem.NewEcmaMethod(ctx, point, "Move", &typesystem.MethodSignature{ReturnType: point})

	group := modulegroup.NewSingleFile(ctx, "Test.Module")
	results, err := Run(ctx, group, newTestLogger(), depgraph.TrackNone, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !results.Inlining.CanInline(staticMethod) {
		t.Fatalf("static methods are always inlineable")
	}
	if !results.Inlining.CanInline(valueMethod) {
		t.Fatalf("value-type methods are always inlineable")
	}
}

func TestRequireMarkedEnforcesOracleProperty(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	widget := typesystem.NewDefType(ctx, mod, "Test", "Widget")
	mod.AddDefType("Test", "Widget", widget)
	entry := typesystem.NewEcmaMethod(ctx, widget, "Main", &typesystem.MethodSignature{ReturnType: widget})

	group := modulegroup.NewSingleFile(ctx, "Test.Module")
	results, err := Run(ctx, group, newTestLogger(), depgraph.TrackNone, nil, nil, []roots.Provider{&roots.SingleMethod{Method: entry}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := results.RequireMarked("MethodEntrypoint:"+typesystem.MethodKey(entry), nil); err != nil {
		t.Fatalf("entrypoint was marked, RequireMarked must succeed: %v", err)
	}
	if err := results.RequireMarked("MethodEntrypoint:nonexistent", []string{"caller"}); err == nil {
		t.Fatalf("expected a ScannerFailedError for an unmarked key")
	} else if sfe, ok := err.(*diagnostics.ScannerFailedError); !ok {
		t.Fatalf("expected *diagnostics.ScannerFailedError, got %T", err)
	} else if sfe.Claim != "MethodEntrypoint:nonexistent" {
		t.Fatalf("unexpected claim: %s", sfe.Claim)
	}
}

// TestScanWithBodyProviderWidensClosureToMatchCompiler exercises the fix for
// the oracle property (invariant 6): a scan that shares the same
// BodyProvider a compiling-mode backend consumes must mark every callee the
// compiler will later report, not just the entrypoint itself. Without a
// ScanBodyProvider, the scan sees only the entrypoint and the callee would
// be absent from the scan's marked set, which is exactly the condition
// enforceSubset exists to catch.
func TestScanWithBodyProviderWidensClosureToMatchCompiler(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	widget := typesystem.NewDefType(ctx, mod, "Test", "Widget")
	mod.AddDefType("Test", "Widget", widget)

	entry := typesystem.NewEcmaMethod(ctx, widget, "Main", &typesystem.MethodSignature{ReturnType: widget})
	callee := typesystem.NewEcmaMethod(ctx, widget, "Helper", &typesystem.MethodSignature{ReturnType: widget})
	widget.DeclaredMethods = append(widget.DeclaredMethods, callee)

	group := modulegroup.NewSingleFile(ctx, "Test.Module")
	providers := []roots.Provider{&roots.SingleMethod{Method: entry}}

	withoutBody, err := Run(ctx, group, newTestLogger(), depgraph.TrackNone, nil, nil, providers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withoutBody.IsMethodLive(callee) {
		t.Fatalf("callee must not be live without a body provider naming it")
	}

	bodies := codegen.MapBodyProvider{
		typesystem.MethodKey(entry): codegen.MethodBody{Calls: []typesystem.MethodDesc{callee}},
	}
	withBody, err := Run(ctx, group, newTestLogger(), depgraph.TrackNone, nil, codegen.AsScanBodyProvider(bodies), providers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !withBody.IsMethodLive(callee) {
		t.Fatalf("callee named in the entrypoint's scanned body must be live")
	}
}
