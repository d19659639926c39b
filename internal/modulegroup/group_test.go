package modulegroup

import (
	"testing"

	"github.com/aot-native/ilc/internal/typesystem"
)

func defInModule(ctx *typesystem.Context, mod *typesystem.ModuleDesc, name string) *typesystem.DefType {
	def := typesystem.NewDefType(ctx, mod, "Test", name)
	mod.AddDefType("Test", name, def)
	return def
}

func TestSingleFileContainsEverything(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "App", nil)
	def := defInModule(ctx, mod, "Widget")
	g := NewSingleFile(ctx, "App")

	if !g.ContainsType(def) {
		t.Fatalf("SingleFile must contain every type")
	}
	m := typesystem.NewEcmaMethod(ctx, def, "Run", &typesystem.MethodSignature{ReturnType: def})
	if !g.ContainsMethodBody(m, false) || !g.VersionsWithMethodBody(m) {
		t.Fatalf("SingleFile must contain and version every method body")
	}
	if g.GeneratedAssembly() == nil {
		t.Fatalf("expected a generated-assembly module")
	}
}

func TestReadyToRunSingleAssemblyBubbleVsInput(t *testing.T) {
	ctx := typesystem.NewContext()
	input := typesystem.NewModuleDesc(ctx, "App", nil)
	bubbleMod := typesystem.NewModuleDesc(ctx, "Bubble.Lib", nil)
	outside := typesystem.NewModuleDesc(ctx, "Outside.Lib", nil)

	appDef := defInModule(ctx, input, "Widget")
	bubbleDef := defInModule(ctx, bubbleMod, "Helper")
	outsideDef := defInModule(ctx, outside, "Other")

	g := NewReadyToRunSingleAssembly(ctx, input, []*typesystem.ModuleDesc{bubbleMod})

	if !g.ContainsType(appDef) || !g.ContainsType(bubbleDef) {
		t.Fatalf("expected both input and bubble types to be contained")
	}
	if g.ContainsType(outsideDef) {
		t.Fatalf("expected outside type to not be contained")
	}

	appMethod := typesystem.NewEcmaMethod(ctx, appDef, "Run", &typesystem.MethodSignature{ReturnType: appDef})
	bubbleMethod := typesystem.NewEcmaMethod(ctx, bubbleDef, "Help", &typesystem.MethodSignature{ReturnType: bubbleDef})

	if !g.ContainsMethodBody(appMethod, false) || !g.ContainsMethodBody(bubbleMethod, false) {
		t.Fatalf("expected both method bodies to be contained")
	}
	if !g.VersionsWithMethodBody(appMethod) {
		t.Fatalf("expected input module method to be versionable (inlinable)")
	}
	if g.VersionsWithMethodBody(bubbleMethod) {
		t.Fatalf("bubble member must not be inlinable, only callable")
	}
}

func TestExternalContainsNothing(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Plugin", nil)
	def := defInModule(ctx, mod, "Widget")
	g := NewExternal(ctx, "Plugin")

	if g.ContainsType(def) {
		t.Fatalf("External must not contain any type")
	}
	m := typesystem.NewEcmaMethod(ctx, def, "Run", &typesystem.MethodSignature{ReturnType: def})
	if g.ContainsMethodBody(m, false) || g.VersionsWithMethodBody(m) {
		t.Fatalf("External must not contain or version any method body")
	}
}
