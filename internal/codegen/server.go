package codegen

import (
	"context"

	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"

	"github.com/aot-native/ilc/internal/nodes"
	"github.com/aot-native/ilc/internal/typesystem"
)

// Server exposes a nodes.Backend as the out-of-process codegen service a
// RemoteBackend dials into. It hand-builds a grpc.ServiceDesc and registers
// it directly against a *grpc.Server rather than relying on a
// protoc-generated registration function, mirroring builtinGrpcRegister's
// manual ServiceDesc construction over a dynamically loaded service
// descriptor.
type Server struct {
	Backend  nodes.Backend
	Resolver Resolver
}

// NewServer wraps backend for remote compilation. resolver recovers the
// MethodDesc a request's method_key names.
func NewServer(backend nodes.Backend, resolver Resolver) *Server {
	return &Server{Backend: backend, Resolver: resolver}
}

// Register attaches the codegen service to s under the same
// compileMethodPath a RemoteBackend invokes.
func (srv *Server) Register(s *grpc.Server) {
	desc := &grpc.ServiceDesc{
		ServiceName: codegenServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "CompileMethod",
				Handler: func(service any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					h := service.(*Server)
					return h.handleCompileMethod(ctx, dec)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "ilc/codegen.proto",
	}
	s.RegisterService(desc, srv)
}

func (srv *Server) handleCompileMethod(_ context.Context, dec func(any) error) (any, error) {
	req := dynamic.NewMessage(compileRequestDescriptor)
	if err := dec(req); err != nil {
		return nil, err
	}

	resp := dynamic.NewMessage(compileResponseDescriptor)
	key := decodeCompileRequestKey(req)
	m, ok := srv.Resolver.MethodForKey(key)
	if !ok {
		resp.SetFieldByName("requires_runtime_jit", true)
		return resp, nil
	}

	result, err := srv.Backend.CompileMethod(m)
	if err != nil {
		return nil, err
	}
	populateCompileResponse(resp, result)
	return resp, nil
}

func populateCompileResponse(resp *dynamic.Message, result nodes.CompileResult) {
	resp.SetFieldByName("code", result.Code)
	resp.SetFieldByName("gc_info", result.GCInfo)
	resp.SetFieldByName("stack_size", int32(result.Frame.StackSize))
	resp.SetFieldByName("has_gc_slots", result.Frame.HasGCSlots)
	resp.SetFieldByName("saved_regs", toAnySlice(result.Frame.SavedRegs))

	calls := make([]string, len(result.Calls))
	for i, c := range result.Calls {
		calls[i] = typesystem.MethodKey(c)
	}
	resp.SetFieldByName("calls", toAnySlice(calls))

	virtualCalls := make([]string, len(result.VirtualCalls))
	for i, c := range result.VirtualCalls {
		virtualCalls[i] = typesystem.MethodKey(c)
	}
	resp.SetFieldByName("virtual_calls", toAnySlice(virtualCalls))

	genericVirtualCalls := make([]string, len(result.GenericVirtualCalls))
	for i, c := range result.GenericVirtualCalls {
		genericVirtualCalls[i] = typesystem.MethodKey(c)
	}
	resp.SetFieldByName("generic_virtual_calls", toAnySlice(genericVirtualCalls))

	types := make([]string, len(result.Types))
	for i, t := range result.Types {
		types[i] = typesystem.TypeKey(t)
	}
	resp.SetFieldByName("types", toAnySlice(types))
	resp.SetFieldByName("helper_id", toAnySlice(result.HelperID))
}

// toAnySlice adapts a []string to the []interface{} shape
// dynamic.Message.SetFieldByName expects for a repeated scalar field.
func toAnySlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
