package typesystem

import (
	"fmt"
	"strings"

	"github.com/aot-native/ilc/internal/diagnostics"
)

// MethodSignature is the parameter/return shape of a method, independent of
// which instantiation of the owning type or method it is seen through.
type MethodSignature struct {
	ReturnType        TypeDesc
	Params            []TypeDesc
	GenericParamCount int
}

func (s *MethodSignature) String() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("(%s)->%s", strings.Join(parts, ","), s.ReturnType.String())
}

// MethodDesc is the polymorphic method handle. Concrete
// variants: *EcmaMethod, *InstantiatedMethod, *MethodForInstantiatedType,
// and synthetic stubs (*SyntheticMethod).
type MethodDesc interface {
	Context() *Context
	OwningType() TypeDesc
	Name() string
	Signature() *MethodSignature

	IsStatic() bool
	IsAbstract() bool
	IsVirtual() bool
	HasInstantiation() bool
	IsCanonicalMethod() bool

	// Instantiation returns the method-level generic type arguments, or
	// nil for a non-generic method.
	Instantiation() []TypeDesc

	// UnderlyingEcmaMethod returns the declaration this handle ultimately
	// wraps — itself for *EcmaMethod, the wrapped method for
	// *InstantiatedMethod and *MethodForInstantiatedType, and nil for a
	// *SyntheticMethod, which wraps no declaration. Used by
	// the vtable algorithm to compare slot identity across wrappers.
	UnderlyingEcmaMethod() *EcmaMethod

	String() string
	identity() string
}

// MethodKey exposes a MethodDesc's interning identity to packages outside
// typesystem, the same way TypeKey does for TypeDesc.
func MethodKey(m MethodDesc) string { return m.identity() }

// EcmaMethod is a method declared directly on a DefType, exactly as read
// from the owning module's metadata.
type EcmaMethod struct {
	ctx *Context

	Owner  *DefType
	Name_  string
	Sig    *MethodSignature
	Static bool
	Abstract_ bool
	Virtual_  bool
	// SlotIndex is this method's vtable slot if it introduces one,
	// -1 if it doesn't introduce a slot (override of an inherited slot or
	// non-virtual).
	SlotIndex int
	// Overrides, if non-nil, names the method on an ancestor type whose
	// slot this method reuses.
	Overrides *EcmaMethod
}

func (m *EcmaMethod) Context() *Context          { return m.ctx }
func (m *EcmaMethod) OwningType() TypeDesc        { return m.Owner }
func (m *EcmaMethod) Name() string                { return m.Name_ }
func (m *EcmaMethod) Signature() *MethodSignature { return m.Sig }
func (m *EcmaMethod) IsStatic() bool              { return m.Static }
func (m *EcmaMethod) IsAbstract() bool            { return m.Abstract_ }
func (m *EcmaMethod) IsVirtual() bool             { return m.Virtual_ }
func (m *EcmaMethod) HasInstantiation() bool      { return false }
func (m *EcmaMethod) IsCanonicalMethod() bool     { return m.Sig.GenericParamCount == 0 }
func (m *EcmaMethod) Instantiation() []TypeDesc   { return nil }
func (m *EcmaMethod) UnderlyingEcmaMethod() *EcmaMethod { return m }
func (m *EcmaMethod) identity() string            { return ptrKey(m) }
func (m *EcmaMethod) String() string              { return m.Owner.String() + "." + m.Name_ }

// NewEcmaMethod constructs a method declaration owned by ctx, with no
// override target and slot -1 (not yet assigned a vtable slot). The loader
// (internal/ilimport) sets the remaining exported fields directly.
func NewEcmaMethod(ctx *Context, owner *DefType, name string, sig *MethodSignature) *EcmaMethod {
	return &EcmaMethod{ctx: ctx, Owner: owner, Name_: name, Sig: sig, SlotIndex: -1}
}

// InstantiatedMethod is a generic method closed over method-level type
// arguments: `List<T>.Sort<U>(...)`.
type InstantiatedMethod struct {
	ctx           *Context
	Def           *EcmaMethod
	TypeArguments []TypeDesc
}

func (m *InstantiatedMethod) Context() *Context          { return m.ctx }
func (m *InstantiatedMethod) OwningType() TypeDesc        { return m.Def.Owner }
func (m *InstantiatedMethod) Name() string                { return m.Def.Name_ }
func (m *InstantiatedMethod) IsStatic() bool              { return m.Def.Static }
func (m *InstantiatedMethod) IsAbstract() bool            { return m.Def.Abstract_ }
func (m *InstantiatedMethod) IsVirtual() bool             { return m.Def.Virtual_ }
func (m *InstantiatedMethod) HasInstantiation() bool      { return true }
func (m *InstantiatedMethod) UnderlyingEcmaMethod() *EcmaMethod { return m.Def }
func (m *InstantiatedMethod) Instantiation() []TypeDesc   { return m.TypeArguments }
func (m *InstantiatedMethod) identity() string            { return ptrKey(m) }

func (m *InstantiatedMethod) IsCanonicalMethod() bool {
	for _, a := range m.TypeArguments {
		if _, ok := a.(*canonSentinel); !ok {
			return false
		}
	}
	return true
}

func (m *InstantiatedMethod) Signature() *MethodSignature {
	sub := newMethodSubst(m.TypeArguments)
	return substituteSignature(m.Def.Sig, sub)
}

func (m *InstantiatedMethod) String() string {
	parts := make([]string, len(m.TypeArguments))
	for i, a := range m.TypeArguments {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", m.Def.String(), strings.Join(parts, ","))
}

// MethodForInstantiatedType is an EcmaMethod viewed through a constructed
// owning type, e.g. `List<int>.Add` where `Add` is declared on `List<T>`.
type MethodForInstantiatedType struct {
	ctx    *Context
	Def    *EcmaMethod
	Owner  *InstantiatedType
}

func (m *MethodForInstantiatedType) Context() *Context          { return m.ctx }
func (m *MethodForInstantiatedType) OwningType() TypeDesc        { return m.Owner }
func (m *MethodForInstantiatedType) Name() string                { return m.Def.Name_ }
func (m *MethodForInstantiatedType) IsStatic() bool              { return m.Def.Static }
func (m *MethodForInstantiatedType) IsAbstract() bool            { return m.Def.Abstract_ }
func (m *MethodForInstantiatedType) IsVirtual() bool             { return m.Def.Virtual_ }
func (m *MethodForInstantiatedType) HasInstantiation() bool      { return false }
func (m *MethodForInstantiatedType) IsCanonicalMethod() bool     { return m.Def.Sig.GenericParamCount == 0 }
func (m *MethodForInstantiatedType) Instantiation() []TypeDesc   { return nil }
func (m *MethodForInstantiatedType) UnderlyingEcmaMethod() *EcmaMethod { return m.Def }
func (m *MethodForInstantiatedType) identity() string            { return ptrKey(m) }
func (m *MethodForInstantiatedType) String() string              { return m.Owner.String() + "." + m.Def.Name_ }

func (m *MethodForInstantiatedType) Signature() *MethodSignature {
	sub := newTypeSubst(m.Owner.Def, m.Owner.Args)
	return substituteSignature(m.Def.Sig, sub)
}

// SyntheticMethod is a compiler-generated stub with no metadata backing:
// unboxing thunks, special dictionary thunks, and the like.
type SyntheticMethod struct {
	ctx   *Context
	Owner TypeDesc
	Name_ string
	Sig   *MethodSignature
	Kind  string // e.g. "unboxing-stub", "special-unboxing-thunk"
}

func (m *SyntheticMethod) Context() *Context          { return m.ctx }
func (m *SyntheticMethod) OwningType() TypeDesc        { return m.Owner }
func (m *SyntheticMethod) Name() string                { return m.Name_ }
func (m *SyntheticMethod) Signature() *MethodSignature { return m.Sig }
func (m *SyntheticMethod) IsStatic() bool              { return false }
func (m *SyntheticMethod) IsAbstract() bool            { return false }
func (m *SyntheticMethod) IsVirtual() bool             { return false }
func (m *SyntheticMethod) HasInstantiation() bool      { return false }
func (m *SyntheticMethod) IsCanonicalMethod() bool     { return true }
func (m *SyntheticMethod) Instantiation() []TypeDesc   { return nil }
func (m *SyntheticMethod) UnderlyingEcmaMethod() *EcmaMethod { return nil }
func (m *SyntheticMethod) identity() string            { return ptrKey(m) }
func (m *SyntheticMethod) String() string              { return m.Owner.String() + "." + m.Name_ + "$" + m.Kind }

func (c *Context) MakeSyntheticMethod(owner TypeDesc, name, kind string, sig *MethodSignature) *SyntheticMethod {
	key := owner.identity() + "#" + name + "#" + kind
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.syntheticStubs[key]; ok {
		return existing
	}
	sm := &SyntheticMethod{ctx: c, Owner: owner, Name_: name, Sig: sig, Kind: kind}
	c.syntheticStubs[key] = sm
	return sm
}

// MakeInstantiatedMethod interns a generic method instantiation.
func (c *Context) MakeInstantiatedMethod(def *EcmaMethod, args []TypeDesc) (*InstantiatedMethod, error) {
	if def.Sig.GenericParamCount == 0 {
		return nil, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, def.String(), "not a generic method")
	}
	if len(args) != def.Sig.GenericParamCount {
		return nil, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, def.String(),
			fmt.Sprintf("expected %d method type arguments, got %d", def.Sig.GenericParamCount, len(args)))
	}

	var key strings.Builder
	key.WriteString(ptrKey(def))
	for _, a := range args {
		key.WriteByte('|')
		key.WriteString(a.identity())
	}
	k := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.instMethods[k]; ok {
		return existing, nil
	}
	im := &InstantiatedMethod{ctx: c, Def: def, TypeArguments: append([]TypeDesc(nil), args...)}
	c.instMethods[k] = im
	return im, nil
}

// MakeMethodForInstantiatedType interns the "method viewed through a
// constructed owner" wrapper.
func (c *Context) MakeMethodForInstantiatedType(def *EcmaMethod, owner *InstantiatedType) *MethodForInstantiatedType {
	key := ptrKey(def) + "#" + owner.identity()
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.methodForInst[key]; ok {
		return existing
	}
	mi := &MethodForInstantiatedType{ctx: c, Def: def, Owner: owner}
	c.methodForInst[key] = mi
	return mi
}
