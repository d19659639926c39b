package typesystem

// subst is a substitution from generic parameter position to a concrete
// TypeDesc, used for signature instantiation.
type subst struct {
	typeArgs   []TypeDesc // indexed by type-level generic parameter position
	methodArgs []TypeDesc // indexed by method-level generic parameter position
}

func newTypeSubst(def *DefType, args []TypeDesc) subst {
	return subst{typeArgs: args}
}

func newMethodSubst(args []TypeDesc) subst {
	return subst{methodArgs: args}
}

// apply substitutes generic parameters and signature variables in t,
// recursing into compound types. Concrete (non-generic-bearing) types are
// returned unchanged — this is what makes apply idempotent once no
// generic variable remains.
func (s subst) apply(ctx *Context, t TypeDesc) TypeDesc {
	switch v := t.(type) {
	case *SignatureVariable:
		if v.OnMethod {
			if v.Index < len(s.methodArgs) {
				return s.methodArgs[v.Index]
			}
		} else if v.Index < len(s.typeArgs) {
			return s.typeArgs[v.Index]
		}
		return v
	case *GenericParameterDesc:
		if v.OwnerIsMethod {
			if v.Index < len(s.methodArgs) {
				return s.methodArgs[v.Index]
			}
		} else if v.Index < len(s.typeArgs) {
			return s.typeArgs[v.Index]
		}
		return v
	case *InstantiatedType:
		changed := false
		newArgs := make([]TypeDesc, len(v.Args))
		for i, a := range v.Args {
			na := s.apply(ctx, a)
			newArgs[i] = na
			if na != a {
				changed = true
			}
		}
		if !changed {
			return v
		}
		it, err := ctx.MakeInstantiatedType(v.Def, newArgs)
		if err != nil {
			return v
		}
		return it
	case *ArrayType:
		ne := s.apply(ctx, v.Elem)
		if ne == v.Elem {
			return v
		}
		return ctx.MakeArrayType(ne, v.Rank)
	case *ByRefType:
		ne := s.apply(ctx, v.Elem)
		if ne == v.Elem {
			return v
		}
		return ctx.MakeByRefType(ne)
	case *PointerType:
		ne := s.apply(ctx, v.Elem)
		if ne == v.Elem {
			return v
		}
		return ctx.MakePointerType(ne)
	case *FunctionPointerType:
		changed := false
		nret := s.apply(ctx, v.ReturnType)
		if nret != v.ReturnType {
			changed = true
		}
		nparams := make([]TypeDesc, len(v.ParamTypes))
		for i, p := range v.ParamTypes {
			np := s.apply(ctx, p)
			nparams[i] = np
			if np != p {
				changed = true
			}
		}
		if !changed {
			return v
		}
		return ctx.MakeFunctionPointerType(nret, nparams)
	default:
		// *DefType is already ground; nothing to substitute.
		return t
	}
}

// substituteSignature applies s to every parameter and the return type of
// sig.
func substituteSignature(sig *MethodSignature, s subst) *MethodSignature {
	ctx := sig.ReturnType.Context()
	newParams := make([]TypeDesc, len(sig.Params))
	for i, p := range sig.Params {
		newParams[i] = s.apply(ctx, p)
	}
	return &MethodSignature{
		ReturnType:        s.apply(ctx, sig.ReturnType),
		Params:            newParams,
		GenericParamCount: 0, // a fully-applied signature carries no open method-level params
	}
}

// InstantiateSignature applies a type/method argument substitution to sig.
// Round-trips to identity when the substitution is built from a type's own
// generic parameters applied back onto its instantiated form, because every
// parameter slot maps to itself.
func InstantiateSignature(ctx *Context, sig *MethodSignature, typeArgs, methodArgs []TypeDesc) *MethodSignature {
	return substituteSignature(sig, subst{typeArgs: typeArgs, methodArgs: methodArgs})
}
