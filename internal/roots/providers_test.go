package roots

import (
	"testing"

	"github.com/aot-native/ilc/internal/typesystem"
)

type recordingService struct {
	methods    []string
	exports    []string
	types      []string
	reflection []string
}

func (r *recordingService) AddMethodRoot(m typesystem.MethodDesc, reason string) {
	r.methods = append(r.methods, m.String()+"#"+reason)
}
func (r *recordingService) AddMethodRootWithExport(m typesystem.MethodDesc, reason, exportName string) {
	r.exports = append(r.exports, m.String()+"#"+exportName)
}
func (r *recordingService) AddTypeRoot(t typesystem.TypeDesc, reason string) {
	r.types = append(r.types, t.String()+"#"+reason)
}
func (r *recordingService) AddReflectionRoot(entity any, reason string) {
	r.reflection = append(r.reflection, reason)
}

func newLibModule(ctx *typesystem.Context) (*typesystem.ModuleDesc, *typesystem.DefType, *typesystem.DefType) {
	mod := typesystem.NewModuleDesc(ctx, "Lib", nil)
	plain := typesystem.NewDefType(ctx, mod, "Lib", "Widget")
	mod.AddDefType("Lib", "Widget", plain)
	m := typesystem.NewEcmaMethod(ctx, plain, "Run", &typesystem.MethodSignature{ReturnType: plain})
	plain.DeclaredMethods = append(plain.DeclaredMethods, m)

	gen := typesystem.NewDefType(ctx, mod, "Lib", "Box")
	gen.GenericArity = 1
	mod.AddDefType("Lib", "Box", gen)
	gm := typesystem.NewEcmaMethod(ctx, gen, "Get", &typesystem.MethodSignature{ReturnType: gen})
	gen.DeclaredMethods = append(gen.DeclaredMethods, gm)

	return mod, plain, gen
}

func TestReadyToRunLibrarySkipsGenericsWithoutCanonicalRooting(t *testing.T) {
	ctx := typesystem.NewContext()
	mod, _, _ := newLibModule(ctx)

	svc := &recordingService{}
	p := &ReadyToRunLibrary{Ctx: ctx, Modules: []*typesystem.ModuleDesc{mod}}
	if err := p.AddCompilationRoots(svc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(svc.methods) != 1 {
		t.Fatalf("expected exactly 1 rooted method (the non-generic one), got %d: %v", len(svc.methods), svc.methods)
	}
	for _, ty := range svc.types {
		if ty == "Lib.Box<__Canon>#library-root-canonical" {
			t.Fatalf("must not root Box<T> without ROOT_CANONICAL_CODE")
		}
	}
}

func TestReadyToRunLibraryRootsCanonicalWhenEnabled(t *testing.T) {
	ctx := typesystem.NewContext()
	mod, _, _ := newLibModule(ctx)

	svc := &recordingService{}
	p := &ReadyToRunLibrary{Ctx: ctx, Modules: []*typesystem.ModuleDesc{mod}, Config: RootingConfig{RootCanonicalCode: true}}
	if err := p.AddCompilationRoots(svc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(svc.methods) != 2 {
		t.Fatalf("expected 2 rooted methods (plain + canonical generic), got %d: %v", len(svc.methods), svc.methods)
	}
	var sawCanonicalType bool
	for _, ty := range svc.types {
		if ty == "Lib.Box<__Canon>#library-root-canonical" {
			sawCanonicalType = true
		}
	}
	if !sawCanonicalType {
		t.Fatalf("expected Box<__Canon> to be rooted, got %v", svc.types)
	}
}

func TestFilteredByScanAdmitsOnlyLiveEntities(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "App", nil)
	def := typesystem.NewDefType(ctx, mod, "App", "Widget")
	mod.AddDefType("App", "Widget", def)
	live := typesystem.NewEcmaMethod(ctx, def, "Live", &typesystem.MethodSignature{ReturnType: def})
	dead := typesystem.NewEcmaMethod(ctx, def, "Dead", &typesystem.MethodSignature{ReturnType: def})

	inner := &multiMethodProvider{methods: []typesystem.MethodDesc{live, dead}}
	filter := &FilteredByScan{Inner: inner, Scan: fakeLiveness{live: map[typesystem.MethodDesc]bool{live: true}}}

	svc := &recordingService{}
	if err := filter.AddCompilationRoots(svc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.methods) != 1 {
		t.Fatalf("expected exactly 1 admitted root, got %d: %v", len(svc.methods), svc.methods)
	}
}

type multiMethodProvider struct {
	methods []typesystem.MethodDesc
}

func (p *multiMethodProvider) AddCompilationRoots(svc Service) error {
	for _, m := range p.methods {
		svc.AddMethodRoot(m, "test-root")
	}
	return nil
}

type fakeLiveness struct {
	live map[typesystem.MethodDesc]bool
}

func (f fakeLiveness) IsMethodLive(m typesystem.MethodDesc) bool { return f.live[m] }
func (f fakeLiveness) IsTypeLive(t typesystem.TypeDesc) bool     { return true }
