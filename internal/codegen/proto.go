package codegen

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/builder"
	"github.com/jhump/protoreflect/dynamic"

	"github.com/aot-native/ilc/internal/typesystem"
)

// compileRequestDescriptor and compileResponseDescriptor are built once as
// fixed literal schemas, the same in-process descriptor construction
// internal/metadata/blob.go uses for MetadataEntry, rather than a
// protoc-generated .pb.go pair: there is no code generation step in this
// repository, only dynamic messages shaped by a builder.
var (
	compileRequestDescriptor  = buildCompileRequestDescriptor()
	compileResponseDescriptor = buildCompileResponseDescriptor()
)

func buildCompileRequestDescriptor() *desc.MessageDescriptor {
	md, err := builder.NewMessage("CompileRequest").
		AddField(builder.NewField("method_key", builder.FieldTypeString())).
		Build()
	if err != nil {
		panic(fmt.Sprintf("codegen: CompileRequest descriptor: %v", err))
	}
	return md
}

func buildCompileResponseDescriptor() *desc.MessageDescriptor {
	md, err := builder.NewMessage("CompileResponse").
		AddField(builder.NewField("requires_runtime_jit", builder.FieldTypeBool())).
		AddField(builder.NewField("code", builder.FieldTypeBytes())).
		AddField(builder.NewField("gc_info", builder.FieldTypeBytes())).
		AddField(builder.NewField("stack_size", builder.FieldTypeInt32())).
		AddField(builder.NewField("has_gc_slots", builder.FieldTypeBool())).
		AddField(builder.NewField("saved_regs", builder.FieldTypeString()).SetRepeated()).
		AddField(builder.NewField("calls", builder.FieldTypeString()).SetRepeated()).
		AddField(builder.NewField("virtual_calls", builder.FieldTypeString()).SetRepeated()).
		AddField(builder.NewField("generic_virtual_calls", builder.FieldTypeString()).SetRepeated()).
		AddField(builder.NewField("types", builder.FieldTypeString()).SetRepeated()).
		AddField(builder.NewField("helper_id", builder.FieldTypeString()).SetRepeated()).
		Build()
	if err != nil {
		panic(fmt.Sprintf("codegen: CompileResponse descriptor: %v", err))
	}
	return md
}

// encodeCompileRequest builds the wire message a RemoteBackend sends for m.
func encodeCompileRequest(m typesystem.MethodDesc) *dynamic.Message {
	msg := dynamic.NewMessage(compileRequestDescriptor)
	msg.SetFieldByName("method_key", typesystem.MethodKey(m))
	return msg
}

// decodeCompileRequestKey returns the method_key string carried by a
// CompileRequest message, or "" when the field is absent.
func decodeCompileRequestKey(msg *dynamic.Message) string {
	v, _ := msg.TryGetFieldByName("method_key")
	key, _ := v.(string)
	return key
}

// stringSliceField reads a repeated string field off a dynamic message.
func stringSliceField(msg *dynamic.Message, name string) []string {
	raw, err := msg.TryGetFieldByName(name)
	if err != nil {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func boolField(msg *dynamic.Message, name string) bool {
	v, _ := msg.TryGetFieldByName(name)
	b, _ := v.(bool)
	return b
}

func bytesField(msg *dynamic.Message, name string) []byte {
	v, _ := msg.TryGetFieldByName(name)
	b, _ := v.([]byte)
	return b
}

func int32Field(msg *dynamic.Message, name string) int32 {
	v, _ := msg.TryGetFieldByName(name)
	n, _ := v.(int32)
	return n
}
