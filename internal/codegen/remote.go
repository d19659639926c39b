package codegen

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/aot-native/ilc/internal/nodes"
	"github.com/aot-native/ilc/internal/typesystem"
)

// compileMethodPath is the fixed RPC path a RemoteBackend invokes and a
// Server registers against, the same "/package.Service/Method" shape
// grpc.ClientConn.Invoke expects when called without a generated stub. It is
// a fixed literal here since there is no .proto file to load one from.
const compileMethodPath = "/ilc.codegen.CodegenService/CompileMethod"
const codegenServiceName = "ilc.codegen.CodegenService"

// Resolver recovers the typesystem entities a CompileResponse's repeated
// string fields name. internal/scanner.ScanResults satisfies this directly
// via its own MethodForKey/TypeForKey: every entity a remote backend can
// legitimately report was already discovered and interned during the scan,
// since the compiler pass's marked set never exceeds the scan's.
type Resolver interface {
	MethodForKey(key string) (typesystem.MethodDesc, bool)
	TypeForKey(key string) (typesystem.TypeDesc, bool)
}

// RemoteBackend implements nodes.Backend over a gRPC connection to an
// out-of-process codegen service: a plaintext client dial plus an Invoke
// call against dynamic protoreflect messages, with no generated client
// stub anywhere in this repository.
type RemoteBackend struct {
	conn     *grpc.ClientConn
	resolver Resolver
}

// DialRemoteBackend connects to addr and returns a Backend that proxies
// CompileMethod calls to it. Resolver recovers MethodDesc/TypeDesc values
// from the response's string keys.
func DialRemoteBackend(addr string, resolver Resolver) (*RemoteBackend, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("codegen: dial %s: %w", addr, err)
	}
	return &RemoteBackend{conn: conn, resolver: resolver}, nil
}

// Close releases the underlying connection.
func (b *RemoteBackend) Close() error { return b.conn.Close() }

func (b *RemoteBackend) CompileMethod(m typesystem.MethodDesc) (nodes.CompileResult, error) {
	req := encodeCompileRequest(m)
	resp := dynamic.NewMessage(compileResponseDescriptor)

	ctx := context.Background()
	if err := b.conn.Invoke(ctx, compileMethodPath, req, resp); err != nil {
		return nodes.CompileResult{}, fmt.Errorf("codegen: CompileMethod(%s): %w", typesystem.MethodKey(m), err)
	}

	if boolField(resp, "requires_runtime_jit") {
		return nodes.CompileResult{}, nil
	}

	result := nodes.CompileResult{
		Code:     bytesField(resp, "code"),
		GCInfo:   bytesField(resp, "gc_info"),
		HelperID: stringSliceField(resp, "helper_id"),
		Frame: nodes.FrameInfo{
			StackSize:  int(int32Field(resp, "stack_size")),
			HasGCSlots: boolField(resp, "has_gc_slots"),
			SavedRegs:  stringSliceField(resp, "saved_regs"),
		},
	}
	for _, key := range stringSliceField(resp, "calls") {
		if mm, ok := b.resolver.MethodForKey(key); ok {
			result.Calls = append(result.Calls, mm)
		}
	}
	for _, key := range stringSliceField(resp, "virtual_calls") {
		if mm, ok := b.resolver.MethodForKey(key); ok {
			result.VirtualCalls = append(result.VirtualCalls, mm)
		}
	}
	for _, key := range stringSliceField(resp, "generic_virtual_calls") {
		if mm, ok := b.resolver.MethodForKey(key); ok {
			result.GenericVirtualCalls = append(result.GenericVirtualCalls, mm)
		}
	}
	for _, key := range stringSliceField(resp, "types") {
		if tt, ok := b.resolver.TypeForKey(key); ok {
			result.Types = append(result.Types, tt)
		}
	}
	return result, nil
}

var _ nodes.Backend = (*RemoteBackend)(nil)
