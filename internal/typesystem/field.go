package typesystem

import "fmt"

// FieldDesc is a field handle.
type FieldDesc struct {
	ctx *Context

	Owner  TypeDesc
	Name_  string
	Type_  TypeDesc
	Static bool

	// HasRVA marks a static field whose initial value is stored at a fixed
	// relative virtual address in the owning module's data section.
	HasRVA bool
	RVA    uint32
}

func (f *FieldDesc) Context() *Context { return f.ctx }
func (f *FieldDesc) Name() string      { return f.Name_ }
func (f *FieldDesc) FieldType() TypeDesc { return f.Type_ }
func (f *FieldDesc) IsStatic() bool    { return f.Static }
func (f *FieldDesc) String() string    { return fmt.Sprintf("%s.%s", f.Owner.String(), f.Name_) }
func (f *FieldDesc) identity() string  { return ptrKey(f) }

// FieldKey exposes a FieldDesc's interning identity to packages outside
// typesystem, the same way TypeKey does for TypeDesc.
func FieldKey(f *FieldDesc) string { return f.identity() }

// MakeField interns a field by (owner, name).
func (c *Context) MakeField(owner TypeDesc, name string, typ TypeDesc, static bool) *FieldDesc {
	key := owner.identity() + "#" + name
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.fields[key]; ok {
		return existing
	}
	fd := &FieldDesc{ctx: c, Owner: owner, Name_: name, Type_: typ, Static: static}
	c.fields[key] = fd
	return fd
}

// MakeRVAField interns a static field backed by module data-section bytes.
func (c *Context) MakeRVAField(owner TypeDesc, name string, typ TypeDesc, rva uint32) *FieldDesc {
	fd := c.MakeField(owner, name, typ, true)
	fd.HasRVA = true
	fd.RVA = rva
	return fd
}
