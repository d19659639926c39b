package typesystem

import (
	"fmt"
	"sort"

	"github.com/aot-native/ilc/internal/diagnostics"
)

// MetadataReader is the narrow surface ModuleDesc needs from the concrete
// metadata/section reader (implemented by internal/ilimport). Kept as an
// interface here, rather than importing ilimport directly, so the type
// algebra has no dependency on the module-format package that populates it
// (ilimport depends on typesystem, never the reverse).
type MetadataReader interface {
	// SectionData returns the `length` bytes stored at relative virtual
	// address `rva` in the module's data section. Returns BadImageFormat
	// when the requested span would run past the section's end.
	SectionData(rva uint32, length uint32) ([]byte, error)
}

// ModuleDesc owns a metadata reader and a type lookup table.
type ModuleDesc struct {
	ctx    *Context
	Name   string
	Reader MetadataReader

	types map[string]*DefType // "namespace.name" -> DefType
}

// NewModuleDesc constructs an (initially empty) module. The loader
// (internal/ilimport) populates it via AddDefType before any GetType call
// resolves against it.
func NewModuleDesc(ctx *Context, name string, reader MetadataReader) *ModuleDesc {
	m := &ModuleDesc{ctx: ctx, Name: name, Reader: reader, types: make(map[string]*DefType)}
	ctx.RegisterModule(m)
	return m
}

// AddDefType registers a type definition owned by this module.
func (m *ModuleDesc) AddDefType(namespace, name string, def *DefType) {
	m.types[namespace+"."+name] = def
}

func (m *ModuleDesc) lookupDef(namespace, name string) (*DefType, bool) {
	d, ok := m.types[namespace+"."+name]
	return d, ok
}

// AllTypes returns every type definition registered in this module, sorted
// by qualified name, for deterministic iteration (root providers rely on
// this for "root every reachable method" library rooting).
func (m *ModuleDesc) AllTypes() []*DefType {
	keys := make([]string, 0, len(m.types))
	for k := range m.types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*DefType, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.types[k])
	}
	return out
}

// ElementSize returns the in-memory size, in bytes, of a primitive-kind
// type. Used to validate RVA field reads: "the field size
// is the element size of the field's type and must not exceed the section
// block length".
func ElementSize(t TypeDesc) (uint32, error) {
	def, ok := t.(*DefType)
	if !ok {
		return 0, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, t.String(), "RVA field type is not a primitive definition")
	}
	switch def.primitiveSize() {
	case 0:
		return 0, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, t.String(), "type has no fixed element size")
	default:
		return def.primitiveSize(), nil
	}
}

// ReadFieldRVA reads an RVA-backed static field's initial bytes out of the
// owning module's data section.
func (m *ModuleDesc) ReadFieldRVA(f *FieldDesc) ([]byte, error) {
	if !f.HasRVA {
		return nil, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, f.String(), "field has no RVA")
	}
	size, err := ElementSize(f.Type_)
	if err != nil {
		return nil, err
	}
	data, err := m.Reader.SectionData(f.RVA, size)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) != size {
		return nil, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, f.String(),
			fmt.Sprintf("expected %d bytes at RVA 0x%x, section yielded %d", size, f.RVA, len(data)))
	}
	return data, nil
}
