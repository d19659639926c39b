package typesystem

import "github.com/aot-native/ilc/internal/config"

// CanonKind selects one of the two canonicalisation flavours:
//
//   - Specific:  reference-type arguments collapse to __Canon; value-type
//     arguments keep their identity.
//   - Universal: every argument collapses, including value types.
type CanonKind int

const (
	Specific CanonKind = iota
	Universal
)

// canonSentinel is the interned __Canon / __UniversalCanon placeholder
// standing in for any reference-typed (or, in the universal case, any)
// instantiation argument. It behaves like an ordinary reference type
// for every Flags() purpose except that it always reports itself as
// already canonical.
type canonSentinel struct {
	ctx  *Context
	kind CanonKind
}

func (t *canonSentinel) Context() *Context { return t.ctx }
func (t *canonSentinel) identity() string  { return ptrKey(t) }
func (t *canonSentinel) String() string {
	if t.kind == Universal {
		return config.UniversalCanonName
	}
	return config.CanonTypeName
}
func (t *canonSentinel) Flags() TypeFlags {
	return TypeFlags{ContainsGCPointers: true, Canonical: IsCanonical}
}
func (t *canonSentinel) BaseType() TypeDesc            { return nil }
func (t *canonSentinel) RuntimeInterfaces() []TypeDesc { return nil }

// canonSentinels are process-wide-per-context singletons, lazily created.
func (c *Context) canonSentinelFor(kind CanonKind) *canonSentinel {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := "__canon_sentinel__" // single bucket, kind-qualified below
	if kind == Universal {
		key += "universal"
	}
	if existing, ok := c.canonCache[key]; ok {
		return existing.(*canonSentinel)
	}
	s := &canonSentinel{ctx: c, kind: kind}
	c.canonCache[key] = s
	return s
}

// CanonSentinel exposes the canon placeholder type for a given flavour.
func (c *Context) CanonSentinel(kind CanonKind) TypeDesc { return c.canonSentinelFor(kind) }

// collapses reports whether a type argument collapses to the canon
// sentinel under the given CanonKind: always for Universal; only reference-type (or
// constrained-reference-type) arguments for Specific.
func collapses(t TypeDesc, kind CanonKind) bool {
	if kind == Universal {
		return true
	}
	if t.Flags().IsValueType {
		return false
	}
	return true
}

// ConvertToCanonForm computes the canonical representative of t under kind.
// Idempotent
// and commutes with instantiation (invariant 3): converting an
// InstantiatedType is the same as converting each argument and
// re-instantiating.
func (c *Context) ConvertToCanonForm(t TypeDesc, kind CanonKind) TypeDesc {
	switch v := t.(type) {
	case *canonSentinel:
		return v
	case *GenericParameterDesc, *SignatureVariable:
		return t // open variables have no canon form yet
	case *DefType:
		return v // a bare definition has no arguments to collapse
	case *InstantiatedType:
		newArgs := make([]TypeDesc, len(v.Args))
		changed := false
		for i, a := range v.Args {
			canonA := c.ConvertToCanonForm(a, kind)
			if collapses(a, kind) {
				canonA = c.canonSentinelFor(kind)
			}
			newArgs[i] = canonA
			if canonA != a {
				changed = true
			}
		}
		if !changed {
			return v
		}
		it, err := c.MakeInstantiatedType(v.Def, newArgs)
		if err != nil {
			return v
		}
		return it
	case *ArrayType:
		ne := c.ConvertToCanonForm(v.Elem, kind)
		if ne == v.Elem {
			return v
		}
		return c.MakeArrayType(ne, v.Rank)
	case *ByRefType:
		ne := c.ConvertToCanonForm(v.Elem, kind)
		if ne == v.Elem {
			return v
		}
		return c.MakeByRefType(ne)
	case *PointerType:
		ne := c.ConvertToCanonForm(v.Elem, kind)
		if ne == v.Elem {
			return v
		}
		return c.MakePointerType(ne)
	default:
		return t
	}
}

// ConvertMethodToCanonForm applies ConvertToCanonForm to every type
// argument of an InstantiatedMethod, producing the shared canonical body
// handle.
func (c *Context) ConvertMethodToCanonForm(m *InstantiatedMethod, kind CanonKind) (*InstantiatedMethod, error) {
	newArgs := make([]TypeDesc, len(m.TypeArguments))
	for i, a := range m.TypeArguments {
		canonA := c.ConvertToCanonForm(a, kind)
		if collapses(a, kind) {
			canonA = c.canonSentinelFor(kind)
		}
		newArgs[i] = canonA
	}
	return c.MakeInstantiatedMethod(m.Def, newArgs)
}

// GetCanonMethodTarget returns the canonical sentinel instantiation of a
// generic method definition for the given kind: `M<__Canon>`.
func (c *Context) GetCanonMethodTarget(def *EcmaMethod, kind CanonKind) (*InstantiatedMethod, error) {
	sentinel := c.canonSentinelFor(kind)
	args := make([]TypeDesc, def.Sig.GenericParamCount)
	for i := range args {
		args[i] = sentinel
	}
	return c.MakeInstantiatedMethod(def, args)
}

// IsCanonicalSubtype reports whether candidate is the canon sentinel
// itself, or an instantiated type that is already its own canonical form
// under kind and has at least one canon-sentinel argument (e.g.
// List<__Canon>).
func (c *Context) IsCanonicalSubtype(candidate TypeDesc, kind CanonKind) bool {
	_, ok := candidate.(*canonSentinel)
	if ok {
		return true
	}
	return c.ConvertToCanonForm(candidate, kind) == candidate && candidate.Flags().Canonical == IsCanonical && hasCanonArg(candidate, kind)
}

func hasCanonArg(t TypeDesc, kind CanonKind) bool {
	it, ok := t.(*InstantiatedType)
	if !ok {
		return false
	}
	for _, a := range it.Args {
		if _, ok := a.(*canonSentinel); ok {
			return true
		}
	}
	return false
}
