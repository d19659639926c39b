package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aot-native/ilc/internal/codegen"
	"github.com/aot-native/ilc/internal/config"
	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/ilimport"
	"github.com/aot-native/ilc/internal/roots"
	"github.com/aot-native/ilc/internal/typesystem"
)

func TestTrackingLevelConversion(t *testing.T) {
	cases := map[config.DependencyTrackingLevel]depgraph.TrackingLevel{
		config.TrackNone:      depgraph.TrackNone,
		config.TrackFirstEdge: depgraph.TrackFirstEdge,
		config.TrackAll:       depgraph.TrackAll,
		"":                    depgraph.TrackNone,
	}
	for in, want := range cases {
		if got := trackingLevel(in); got != want {
			t.Errorf("trackingLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// oneMethodModuleSpec builds a single module with one type and one method,
// the simplest shape that exercises LoadModules -> BuildGroup -> roots ->
// scanner -> compiler -> metadata -> objwriter end to end.
func oneMethodModuleSpec() ilimport.ModuleSpec {
	return ilimport.ModuleSpec{
		Name: "Test.Module",
		Types: []ilimport.TypeRow{
			{Namespace: "Test", Name: "Widget"},
		},
		Methods: []ilimport.MethodRow{
			{OwnerNamespace: "Test", OwnerName: "Widget", Name: "Run", ReturnTypeName: "Test.Widget"},
		},
	}
}

func TestPipelineRunsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.ilcimg")

	ctx := &Context{
		Options: config.Options{OutputPath: outPath, ModuleGroupMode: config.ModuleGroupSingleFile},
		Logger:  diagnostics.NewLogger(io.Discard, false),
	}

	pl := New(
		&LoadModules{Specs: []ilimport.ModuleSpec{oneMethodModuleSpec()}, Primary: "Test.Module"},
		&BuildGroup{},
		FuncStage(func(c *Context) error {
			c.Providers = []roots.Provider{
				&roots.ReadyToRunLibrary{Ctx: c.TypeCtx, Modules: []*typesystem.ModuleDesc{c.Primary}, Logger: c.Logger},
			}
			return nil
		}),
		&RunScanner{Bodies: codegen.MapBodyProvider{}},
		&RunCompiler{Bodies: codegen.MapBodyProvider{}},
		&ComputeMetadataStage{},
		&EmitObjectStage{},
	)

	if err := pl.Run(ctx); err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output image at %s: %v", outPath, err)
	}
	if ctx.Blob == nil {
		t.Fatalf("expected a computed metadata blob")
	}
}
