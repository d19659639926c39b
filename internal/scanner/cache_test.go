package scanner

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/modulegroup"
	"github.com/aot-native/ilc/internal/roots"
	"github.com/aot-native/ilc/internal/typesystem"
)

func TestCacheStoreAndLookupRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-cache.db")
	c, err := OpenCache(path)
	if err != nil {
		t.Fatalf("unexpected error opening cache: %v", err)
	}
	defer c.Close()

	fp := Fingerprint([]string{"Test.Module", "System.Private.CoreLib"}, "root-canonical=false")
	if _, ok, err := c.Lookup(fp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if ok {
		t.Fatalf("expected a cache miss before any Store")
	}

	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	widget := typesystem.NewDefType(ctx, mod, "Test", "Widget")
	mod.AddDefType("Test", "Widget", widget)
	entry := typesystem.NewEcmaMethod(ctx, widget, "Main", &typesystem.MethodSignature{ReturnType: widget})

	group := modulegroup.NewSingleFile(ctx, "Test.Module")
	results, err := Run(ctx, group, diagnostics.NewLogger(io.Discard, false), depgraph.TrackNone, nil, []roots.Provider{&roots.SingleMethod{Method: entry}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Store(fp, results); err != nil {
		t.Fatalf("unexpected error storing summary: %v", err)
	}

	summary, ok, err := c.Lookup(fp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a cache hit after Store")
	}
	if summary.LiveMethods != len(results.liveMethods) {
		t.Fatalf("summary.LiveMethods = %d, want %d", summary.LiveMethods, len(results.liveMethods))
	}
}

func TestFingerprintIsOrderSensitiveAndDeterministic(t *testing.T) {
	a := Fingerprint([]string{"A", "B"}, "x")
	b := Fingerprint([]string{"A", "B"}, "x")
	if a != b {
		t.Fatalf("Fingerprint must be deterministic for identical inputs")
	}
	c := Fingerprint([]string{"B", "A"}, "x")
	if a == c {
		t.Fatalf("Fingerprint should vary with module order, which also vary the scan's rooting order")
	}
}
