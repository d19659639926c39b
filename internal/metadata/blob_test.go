package metadata

import (
	"testing"

	"github.com/aot-native/ilc/internal/typesystem"
)

func TestComputeMetadataRoundTrips(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	widget := newTestType(ctx, mod, "Widget")
	gadget := newTestType(ctx, mod, "Gadget")

	p := NewCompilerGenerated(widget)
	blob, err := ComputeMetadata(p, []any{widget, gadget})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blob.TypeMap) != 1 {
		t.Fatalf("expected exactly 1 blob-backed type, got %d", len(blob.TypeMap))
	}
	offset, ok := blob.TypeMap[typesystem.TypeKey(widget)]
	if !ok {
		t.Fatalf("widget missing from TypeMap")
	}
	kind, key, cat, err := DecodeEntryAt(blob.Bytes, offset)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if kind != "type" || key != typesystem.TypeKey(widget) {
		t.Fatalf("decoded (%s,%s), want (type,%s)", kind, key, typesystem.TypeKey(widget))
	}
	if cat != Description|RuntimeMapping {
		t.Fatalf("decoded category = %v, want both flags", cat)
	}
}

func TestComputeMetadataIsDeterministicallyOrdered(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	a := newTestType(ctx, mod, "Alpha")
	b := newTestType(ctx, mod, "Beta")

	p := NewCompilerGenerated(a, b)
	first, err := ComputeMetadata(p, []any{b, a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ComputeMetadata(p, []any{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first.Bytes) != string(second.Bytes) {
		t.Fatalf("ComputeMetadata blob is not deterministic across input order")
	}
}

func TestComputeMetadataSkipsZeroCategoryEntities(t *testing.T) {
	ctx := typesystem.NewContext()
	mod := typesystem.NewModuleDesc(ctx, "Test.Module", nil)
	widget := newTestType(ctx, mod, "Widget")

	blob, err := ComputeMetadata(Empty{}, []any{widget})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blob.Bytes) != 0 {
		t.Fatalf("Empty policy should produce an empty blob, got %d bytes", len(blob.Bytes))
	}
}
