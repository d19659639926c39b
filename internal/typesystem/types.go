// Package typesystem is the interned type-system algebra:
// types, methods, fields, generic instantiation and canonicalisation.
//
// Every entity is a value-identity object: two references to "the same"
// entity are the same Go pointer. Interning is structural — equal inputs to
// a Make* constructor always yield the same pointer — which is what lets
// callers compare TypeDesc/MethodDesc values with ==.
package typesystem

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aot-native/ilc/internal/diagnostics"
)

// PrimitiveKind enumerates the small set of built-in primitive shapes a
// DefType can carry. Anything else is an ordinary reference or value type.
type PrimitiveKind int

const (
	NotPrimitive PrimitiveKind = iota
	PrimitiveVoid
	PrimitiveBool
	PrimitiveByte
	PrimitiveInt32
	PrimitiveInt64
	PrimitiveFloat64
	PrimitiveIntPtr
)

// CanonicalKind classifies where a type sits relative to canonicalisation:
// a concrete (non-generic-bearing) type, a type that already is a canonical
// form, or a type that still contains generic variables.
type CanonicalKind int

const (
	NotCanonical CanonicalKind = iota
	IsCanonical
	ContainsGenericVariables
)

// TypeFlags are the category flags every TypeDesc carries.
type TypeFlags struct {
	Primitive                PrimitiveKind
	IsValueType              bool
	ContainsGCPointers       bool
	ContainsGenericVariables bool
	Canonical                CanonicalKind
}

// TypeDesc is the polymorphic type handle. The concrete
// variants are *DefType, *ArrayType, *ByRefType, *PointerType,
// *FunctionPointerType, *GenericParameterDesc, *InstantiatedType and
// *SignatureVariable — always behind a pointer, so interning can use the
// pointer itself as an identity key.
type TypeDesc interface {
	String() string
	Context() *Context
	Flags() TypeFlags
	BaseType() TypeDesc
	RuntimeInterfaces() []TypeDesc

	// identity is the interning key contribution of this node: stable,
	// collision-free across the lifetime of one Context because it is
	// derived from the node's own pointer once created.
	identity() string
}

func ptrKey(p any) string { return fmt.Sprintf("%p", p) }

// TypeKey exposes a TypeDesc's interning identity to packages outside
// typesystem (the node factory keys its caches off it), without giving
// those packages access to the unexported identity method itself.
func TypeKey(t TypeDesc) string { return t.identity() }

// Context is the TypeSystemContext: the per-compilation interning arena for
// every type-system entity.
//
// Interning tables must tolerate "create during dependency computation
// while iterating the marked list": a type can be looked up
// (and, on miss, created) from inside a graph node's dependency callback
// while another part of the graph machinery is walking an already-marked
// node list. A single coarse mutex satisfies that without claiming true
// concurrent-writer throughput, matching §5's "need not support truly
// concurrent mutation".
type Context struct {
	mu sync.Mutex

	modules map[string]*ModuleDesc

	definedTypes map[string]*DefType
	instTypes    map[string]*InstantiatedType
	arrayTypes   map[string]*ArrayType
	byRefTypes   map[string]*ByRefType
	ptrTypes     map[string]*PointerType
	fnPtrTypes   map[string]*FunctionPointerType
	genericParam map[string]*GenericParameterDesc
	sigVars      map[string]*SignatureVariable

	instMethods    map[string]*InstantiatedMethod
	methodForInst  map[string]*MethodForInstantiatedType
	syntheticStubs map[string]*SyntheticMethod

	fields map[string]*FieldDesc

	canonCache map[string]TypeDesc

	vtableCache   map[*DefType][]*MethodDesc   // introduced slot list per def
	implSlotCache map[string][]*MethodDesc      // full impl slot array per instantiated type
}

// NewContext creates an empty TypeSystemContext.
func NewContext() *Context {
	return &Context{
		modules:        make(map[string]*ModuleDesc),
		definedTypes:   make(map[string]*DefType),
		instTypes:      make(map[string]*InstantiatedType),
		arrayTypes:     make(map[string]*ArrayType),
		byRefTypes:     make(map[string]*ByRefType),
		ptrTypes:       make(map[string]*PointerType),
		fnPtrTypes:     make(map[string]*FunctionPointerType),
		genericParam:   make(map[string]*GenericParameterDesc),
		sigVars:        make(map[string]*SignatureVariable),
		instMethods:    make(map[string]*InstantiatedMethod),
		methodForInst:  make(map[string]*MethodForInstantiatedType),
		syntheticStubs: make(map[string]*SyntheticMethod),
		fields:         make(map[string]*FieldDesc),
		canonCache:     make(map[string]TypeDesc),
		vtableCache:    make(map[*DefType][]*MethodDesc),
		implSlotCache:  make(map[string][]*MethodDesc),
	}
}

// RegisterModule makes a ModuleDesc visible to GetType lookups under its
// own name.
func (c *Context) RegisterModule(m *ModuleDesc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[m.Name] = m
}

// DefType is a non-instantiated type definition: a class/struct/interface
// declared directly in a module.
type DefType struct {
	ctx *Context

	Module    *ModuleDesc
	Namespace string
	Name      string

	IsValueType   bool
	IsInterface   bool
	IsAbstract    bool
	GenericArity  int // number of generic parameters this definition takes
	Primitive     PrimitiveKind

	BaseTypeDef *DefType   // nil for System.Object and for interfaces
	Interfaces  []*DefType // directly implemented interfaces

	// DeclaredMethods are the methods declared directly on this
	// definition, in metadata order.
	DeclaredMethods []*EcmaMethod
	DeclaredFields  []*FieldDesc
}

func (t *DefType) Context() *Context { return t.ctx }
func (t *DefType) String() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}
func (t *DefType) identity() string { return ptrKey(t) }

// primitiveSize returns the in-memory element size of a primitive DefType,
// or 0 if this definition is not a fixed-size primitive.
func (t *DefType) primitiveSize() uint32 {
	switch t.Primitive {
	case PrimitiveBool, PrimitiveByte:
		return 1
	case PrimitiveInt32, PrimitiveFloat64:
		if t.Primitive == PrimitiveFloat64 {
			return 8
		}
		return 4
	case PrimitiveInt64, PrimitiveIntPtr:
		return 8
	default:
		return 0
	}
}

func (t *DefType) Flags() TypeFlags {
	canon := IsCanonical
	if t.GenericArity > 0 {
		// An un-instantiated open generic definition is not itself usable
		// as a concrete type; treat it as containing generic variables so
		// ConvertToCanonForm callers don't mistake it for ground code.
		canon = ContainsGenericVariables
	}
	return TypeFlags{
		IsValueType:        t.IsValueType,
		ContainsGCPointers: !t.IsValueType,
		Canonical:          canon,
	}
}

func (t *DefType) BaseType() TypeDesc {
	if t.BaseTypeDef == nil {
		return nil
	}
	return t.BaseTypeDef
}

func (t *DefType) RuntimeInterfaces() []TypeDesc {
	out := make([]TypeDesc, len(t.Interfaces))
	for i, iface := range t.Interfaces {
		out[i] = iface
	}
	return out
}

// NewDefType constructs a type definition owned by ctx and mod. Callers
// outside this package (internal/ilimport's loader) use this instead of
// touching the unexported ctx field directly, then set the remaining
// exported fields (IsValueType, BaseTypeDef, Interfaces, ...) themselves.
func NewDefType(ctx *Context, mod *ModuleDesc, namespace, name string) *DefType {
	return &DefType{ctx: ctx, Module: mod, Namespace: namespace, Name: name}
}

// GetType resolves a (module, namespace, name) triple to its DefType,
// interning by that triple. Fails with TypeLoad
// when the module has no such type registered.
func (c *Context) GetType(module *ModuleDesc, namespace, name string) (*DefType, error) {
	c.mu.Lock()
	key := module.Name + "/" + namespace + "." + name
	if existing, ok := c.definedTypes[key]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.mu.Unlock()

	def, ok := module.lookupDef(namespace, name)
	if !ok {
		return nil, diagnostics.NewTypeSystemError(diagnostics.TypeLoad, namespace+"."+name,
			fmt.Sprintf("type not found in module %s", module.Name))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.definedTypes[key]; ok {
		return existing, nil
	}
	c.definedTypes[key] = def
	return def, nil
}

// InstantiatedType is a closed generic instantiation def<args...>.
type InstantiatedType struct {
	ctx  *Context
	Def  *DefType
	Args []TypeDesc
}

func (t *InstantiatedType) Context() *Context { return t.ctx }
func (t *InstantiatedType) identity() string  { return ptrKey(t) }
func (t *InstantiatedType) String() string {
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", t.Def.String(), strings.Join(parts, ","))
}

func (t *InstantiatedType) Flags() TypeFlags {
	f := t.Def.Flags()
	f.Canonical = IsCanonical
	for _, a := range t.Args {
		if a.Flags().ContainsGenericVariables || a.Flags().Canonical == ContainsGenericVariables {
			f.Canonical = ContainsGenericVariables
		}
		if a.Flags().ContainsGCPointers {
			f.ContainsGCPointers = true
		}
	}
	return f
}

func (t *InstantiatedType) BaseType() TypeDesc {
	if t.Def.BaseTypeDef == nil {
		return nil
	}
	base, err := t.ctx.MakeInstantiatedType(t.Def.BaseTypeDef, t.Args)
	if err != nil {
		// BaseTypeDef may not share the same arity (non-generic base); fall
		// back to the plain base definition.
		return t.Def.BaseTypeDef
	}
	return base
}

func (t *InstantiatedType) RuntimeInterfaces() []TypeDesc {
	out := make([]TypeDesc, 0, len(t.Def.Interfaces))
	for _, iface := range t.Def.Interfaces {
		inst, err := t.ctx.MakeInstantiatedType(iface, t.Args)
		if err != nil {
			out = append(out, iface)
			continue
		}
		out = append(out, inst)
	}
	return out
}

// MakeInstantiatedType interns def<args...>. Arity mismatch
// is a BadImageFormat-class failure: the metadata asked for an instantiation
// the definition cannot accept.
func (c *Context) MakeInstantiatedType(def *DefType, args []TypeDesc) (*InstantiatedType, error) {
	if def.GenericArity == 0 {
		return nil, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, def.String(), "not a generic definition")
	}
	if len(args) != def.GenericArity {
		return nil, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, def.String(),
			fmt.Sprintf("expected %d generic arguments, got %d", def.GenericArity, len(args)))
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
	if existing, ok := c.instTypes[k]; ok {
		return existing, nil
	}
	argsCopy := append([]TypeDesc(nil), args...)
	it := &InstantiatedType{ctx: c, Def: def, Args: argsCopy}
	c.instTypes[k] = it
	return it, nil
}

// ArrayType, ByRefType, PointerType are the simple unary type constructors.
type ArrayType struct {
	ctx  *Context
	Elem TypeDesc
	Rank int // 0 means a single-dimensional szarray
}

func (t *ArrayType) Context() *Context { return t.ctx }
func (t *ArrayType) identity() string  { return ptrKey(t) }
func (t *ArrayType) String() string {
	if t.Rank <= 1 {
		return t.Elem.String() + "[]"
	}
	return fmt.Sprintf("%s[%s]", t.Elem.String(), strings.Repeat(",", t.Rank-1))
}
func (t *ArrayType) Flags() TypeFlags {
	return TypeFlags{ContainsGCPointers: true, Canonical: t.Elem.Flags().Canonical}
}
func (t *ArrayType) BaseType() TypeDesc           { return nil } // array's runtime base is System.Array, owned by ModuleGroup/NodeFactory policy
func (t *ArrayType) RuntimeInterfaces() []TypeDesc { return nil }

func (c *Context) MakeArrayType(elem TypeDesc, rank int) *ArrayType {
	key := fmt.Sprintf("%s#%d", elem.identity(), rank)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.arrayTypes[key]; ok {
		return existing
	}
	at := &ArrayType{ctx: c, Elem: elem, Rank: rank}
	c.arrayTypes[key] = at
	return at
}

type ByRefType struct {
	ctx  *Context
	Elem TypeDesc
}

func (t *ByRefType) Context() *Context            { return t.ctx }
func (t *ByRefType) identity() string             { return ptrKey(t) }
func (t *ByRefType) String() string               { return "&" + t.Elem.String() }
func (t *ByRefType) Flags() TypeFlags             { return TypeFlags{ContainsGCPointers: true, Canonical: t.Elem.Flags().Canonical} }
func (t *ByRefType) BaseType() TypeDesc           { return nil }
func (t *ByRefType) RuntimeInterfaces() []TypeDesc { return nil }

func (c *Context) MakeByRefType(elem TypeDesc) *ByRefType {
	key := elem.identity()
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byRefTypes[key]; ok {
		return existing
	}
	bt := &ByRefType{ctx: c, Elem: elem}
	c.byRefTypes[key] = bt
	return bt
}

type PointerType struct {
	ctx  *Context
	Elem TypeDesc
}

func (t *PointerType) Context() *Context            { return t.ctx }
func (t *PointerType) identity() string              { return ptrKey(t) }
func (t *PointerType) String() string                { return t.Elem.String() + "*" }
func (t *PointerType) Flags() TypeFlags              { return TypeFlags{IsValueType: true, Canonical: IsCanonical} }
func (t *PointerType) BaseType() TypeDesc            { return nil }
func (t *PointerType) RuntimeInterfaces() []TypeDesc { return nil }

func (c *Context) MakePointerType(elem TypeDesc) *PointerType {
	key := elem.identity()
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.ptrTypes[key]; ok {
		return existing
	}
	pt := &PointerType{ctx: c, Elem: elem}
	c.ptrTypes[key] = pt
	return pt
}

// FunctionPointerType describes an unmanaged calling-convention signature
// used as a type (e.g. a delegate's invoke shape at the codegen boundary).
type FunctionPointerType struct {
	ctx        *Context
	ReturnType TypeDesc
	ParamTypes []TypeDesc
}

func (t *FunctionPointerType) Context() *Context { return t.ctx }
func (t *FunctionPointerType) identity() string  { return ptrKey(t) }
func (t *FunctionPointerType) String() string {
	parts := make([]string, len(t.ParamTypes))
	for i, p := range t.ParamTypes {
		parts[i] = p.String()
	}
	return fmt.Sprintf("(%s)->%s", strings.Join(parts, ","), t.ReturnType.String())
}
func (t *FunctionPointerType) Flags() TypeFlags              { return TypeFlags{IsValueType: true, Canonical: IsCanonical} }
func (t *FunctionPointerType) BaseType() TypeDesc            { return nil }
func (t *FunctionPointerType) RuntimeInterfaces() []TypeDesc { return nil }

func (c *Context) MakeFunctionPointerType(ret TypeDesc, params []TypeDesc) *FunctionPointerType {
	var key strings.Builder
	key.WriteString(ret.identity())
	for _, p := range params {
		key.WriteByte(',')
		key.WriteString(p.identity())
	}
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.fnPtrTypes[k]; ok {
		return existing
	}
	ft := &FunctionPointerType{ctx: c, ReturnType: ret, ParamTypes: append([]TypeDesc(nil), params...)}
	c.fnPtrTypes[k] = ft
	return ft
}

// GenericParameterDesc is an unbound generic parameter on a type or method
// definition (the `T` in `List<T>` before instantiation).
type GenericParameterDesc struct {
	ctx         *Context
	OwnerIsMethod bool
	OwnerKey    string // DefType.String() or MethodDesc signature key
	Index       int
	Name        string
	IsValueTypeConstraint bool // true if constrained to value types only
}

func (t *GenericParameterDesc) Context() *Context { return t.ctx }
func (t *GenericParameterDesc) identity() string  { return ptrKey(t) }
func (t *GenericParameterDesc) String() string    { return t.Name }
func (t *GenericParameterDesc) Flags() TypeFlags {
	return TypeFlags{ContainsGenericVariables: true, Canonical: ContainsGenericVariables}
}
func (t *GenericParameterDesc) BaseType() TypeDesc            { return nil }
func (t *GenericParameterDesc) RuntimeInterfaces() []TypeDesc { return nil }

func (c *Context) MakeGenericParameter(ownerKey string, ownerIsMethod bool, index int, name string, valueTypeConstraint bool) *GenericParameterDesc {
	key := fmt.Sprintf("%s#%v#%d", ownerKey, ownerIsMethod, index)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.genericParam[key]; ok {
		return existing
	}
	gp := &GenericParameterDesc{ctx: c, OwnerIsMethod: ownerIsMethod, OwnerKey: ownerKey, Index: index, Name: name, IsValueTypeConstraint: valueTypeConstraint}
	c.genericParam[key] = gp
	return gp
}

// SignatureVariable is a signature-local substitution placeholder used
// while instantiating a method signature (distinct from a declaration-site
// GenericParameterDesc).
type SignatureVariable struct {
	ctx          *Context
	Index        int
	OnMethod     bool // method-level (!!0) vs type-level (!0) variable
}

func (t *SignatureVariable) Context() *Context { return t.ctx }
func (t *SignatureVariable) identity() string  { return ptrKey(t) }
func (t *SignatureVariable) String() string {
	if t.OnMethod {
		return fmt.Sprintf("!!%d", t.Index)
	}
	return fmt.Sprintf("!%d", t.Index)
}
func (t *SignatureVariable) Flags() TypeFlags {
	return TypeFlags{ContainsGenericVariables: true, Canonical: ContainsGenericVariables}
}
func (t *SignatureVariable) BaseType() TypeDesc            { return nil }
func (t *SignatureVariable) RuntimeInterfaces() []TypeDesc { return nil }

func (c *Context) MakeSignatureVariable(index int, onMethod bool) *SignatureVariable {
	key := fmt.Sprintf("%v#%d", onMethod, index)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sigVars[key]; ok {
		return existing
	}
	sv := &SignatureVariable{ctx: c, Index: index, OnMethod: onMethod}
	c.sigVars[key] = sv
	return sv
}

// sortedDefTypeNames returns the keys of a map of *DefType in sorted order,
// for deterministic iteration over it.
func sortedDefTypeNames(m map[string]*DefType) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
