// Package codegen is the machine-code generator a compiling-mode
// MethodWithGCInfo node invokes to turn one method into code, relocations,
// frame info, and GC info, calling back into the NodeFactory for every
// symbol it references along the way.
//
// Two implementations are provided: StubBackend runs in-process against a
// supplied body source (the stand-in for a real JIT-like backend), and
// RemoteBackend dispatches CompileMethod as a gRPC unary call to an
// out-of-process codegen service.
package codegen

import (
	"github.com/aot-native/ilc/internal/nodes"
	"github.com/aot-native/ilc/internal/typesystem"
)

// MethodBody is the conservative summary a body importer hands the backend
// for one method: the calls, constructed types, and ready-to-run helpers
// its real machine code would reference. Full bytecode body parsing is out
// of scope; this is the narrowest shape that lets StubBackend produce a
// CompileResult a MethodWithGCInfo node can hang further edges off of.
type MethodBody struct {
	Calls               []typesystem.MethodDesc
	VirtualCalls        []typesystem.MethodDesc
	GenericVirtualCalls []typesystem.MethodDesc
	Types               []typesystem.TypeDesc
	Helpers             []string

	// Intrinsics lists the ISA extensions this body lowers directly to.
	// Extensions without a known compile-time support level (see
	// IsKnownSupportedIntrinsicAtCompileTime) pull in an IsaCheck helper.
	Intrinsics []ISAExtension

	// RequiresRuntimeJit marks a method the backend cannot pre-compile: not
	// fatal, the node simply gets an empty CompileResult and degrades to
	// "not pre-compiled" with no outgoing edges.
	RequiresRuntimeJit bool
}

// BodyProvider supplies the MethodBody a backend needs to synthesize a
// CompileResult. MapBodyProvider below is the implementation in this
// repository (a full driver would back it with a real bytecode reader);
// StubBackend never parses a method body itself.
type BodyProvider interface {
	Body(m typesystem.MethodDesc) (MethodBody, bool)
}

// MapBodyProvider is the simplest BodyProvider: a fixed table keyed by the
// method's interning identity, the shape test fixtures and small driver
// runs build directly rather than standing up a real module reader.
type MapBodyProvider map[string]MethodBody

func (p MapBodyProvider) Body(m typesystem.MethodDesc) (MethodBody, bool) {
	b, ok := p[typesystem.MethodKey(m)]
	return b, ok
}

// scanBodyAdapter satisfies nodes.ScanBodyProvider over the same
// BodyProvider a compiling-mode backend consumes, so the scanner pulls in
// exactly the lightweight-body-importer summary described in spec §4.7
// instead of a second, independently-maintained one.
type scanBodyAdapter struct {
	bodies BodyProvider
}

// AsScanBodyProvider adapts a BodyProvider (the same lightweight body
// importer StubBackend/RemoteBackend consume) to nodes.ScanBodyProvider, so
// the scanner pass discovers the identical call/type/helper closure the
// compiler pass will later request.
func AsScanBodyProvider(bodies BodyProvider) nodes.ScanBodyProvider {
	return scanBodyAdapter{bodies: bodies}
}

func (a scanBodyAdapter) ScanBody(m typesystem.MethodDesc) (nodes.ScanDeps, bool) {
	b, ok := a.bodies.Body(m)
	if !ok {
		return nodes.ScanDeps{}, false
	}
	return nodes.ScanDeps{
		Calls:               b.Calls,
		VirtualCalls:        b.VirtualCalls,
		GenericVirtualCalls: b.GenericVirtualCalls,
		Types:               b.Types,
		Helpers:             append(append([]string{}, b.Helpers...), isaCheckHelpers(b.Intrinsics)...),
		RequiresRuntimeJit:  b.RequiresRuntimeJit,
	}, true
}

// isaCheckHelpers maps the subset of used intrinsics without a known
// compile-time support level to their IsaCheck helper ids, deduplicated.
func isaCheckHelpers(exts []ISAExtension) []string {
	var ids []string
	seen := make(map[ISAExtension]bool)
	for _, ext := range exts {
		if IsKnownSupportedIntrinsicAtCompileTime(ext) || seen[ext] {
			continue
		}
		seen[ext] = true
		ids = append(ids, isaCheckHelperID(ext))
	}
	return ids
}

// synthesizeFrame derives a deterministic FrameInfo from a method's own
// signature: one stack slot per parameter plus the return value, and
// HasGCSlots set whenever any of them contains a GC pointer.
func synthesizeFrame(m typesystem.MethodDesc) nodes.FrameInfo {
	sig := m.Signature()
	frame := nodes.FrameInfo{StackSize: (len(sig.Params) + 1) * 8}
	if sig.ReturnType != nil && sig.ReturnType.Flags().ContainsGCPointers {
		frame.HasGCSlots = true
	}
	for _, p := range sig.Params {
		if p.Flags().ContainsGCPointers {
			frame.HasGCSlots = true
		}
	}
	if frame.HasGCSlots {
		frame.SavedRegs = []string{"rbx", "rsi"}
	}
	return frame
}

// synthesizeCode builds a small deterministic byte body standing in for
// real machine code: a watermark tag followed by the method's own key, long
// enough to exercise the object writer's relocation bookkeeping without
// depending on an actual JIT.
func synthesizeCode(m typesystem.MethodDesc) []byte {
	key := typesystem.MethodKey(m)
	code := make([]byte, 0, len(key)+4)
	code = append(code, 'I', 'L', 'C', 0)
	code = append(code, key...)
	return code
}

// StubBackend is the in-process codegen backend: no external process, no
// real instruction selection, just enough synthesis to drive the pipeline
// end to end and exercise every edge kind a real backend would produce.
type StubBackend struct {
	Bodies BodyProvider
}

// NewStubBackend builds a StubBackend over bodies.
func NewStubBackend(bodies BodyProvider) *StubBackend {
	return &StubBackend{Bodies: bodies}
}

func (b *StubBackend) CompileMethod(m typesystem.MethodDesc) (nodes.CompileResult, error) {
	body, ok := b.Bodies.Body(m)
	if !ok || body.RequiresRuntimeJit {
		return nodes.CompileResult{}, nil
	}

	result := nodes.CompileResult{
		Code:                synthesizeCode(m),
		Frame:               synthesizeFrame(m),
		Calls:               body.Calls,
		VirtualCalls:        body.VirtualCalls,
		GenericVirtualCalls: body.GenericVirtualCalls,
		Types:               body.Types,
		HelperID:            append(append([]string{}, body.Helpers...), isaCheckHelpers(body.Intrinsics)...),
	}
	if result.Frame.HasGCSlots {
		result.GCInfo = []byte{byte(len(result.Frame.SavedRegs))}
	}
	for i, call := range body.Calls {
		result.Relocs = append(result.Relocs, nodes.Relocation{
			Offset: i * 8,
			Target: "MethodEntrypoint:" + typesystem.MethodKey(call),
			Kind:   "call",
		})
	}
	return result, nil
}

var _ nodes.Backend = (*StubBackend)(nil)
