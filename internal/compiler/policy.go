package compiler

import (
	"github.com/aot-native/ilc/internal/config"
	"github.com/aot-native/ilc/internal/nodes"
	"github.com/aot-native/ilc/internal/typesystem"
)

// policyBackend applies §6's two generic-code switches before ever handing a
// method to the real backend: NoGenericCode suppresses every generic
// method's body, OnlyCanonicalCode suppresses only non-canonical
// instantiations. Either way the suppressed method gets an empty
// CompileResult rather than an error, matching "emits empty body" rather
// than "fails to compile".
type policyBackend struct {
	inner             nodes.Backend
	noGenericCode     bool
	onlyCanonicalCode bool
}

func newPolicyBackend(inner nodes.Backend, opts config.Options) *policyBackend {
	return &policyBackend{
		inner:             inner,
		noGenericCode:     opts.NoGenericCode,
		onlyCanonicalCode: opts.OnlyCanonicalCode,
	}
}

func (b *policyBackend) CompileMethod(m typesystem.MethodDesc) (nodes.CompileResult, error) {
	if b.noGenericCode && isGenericMethod(m) {
		return nodes.CompileResult{}, nil
	}
	if b.onlyCanonicalCode && isGenericMethod(m) && !isCanonicalGenericCode(m) {
		return nodes.CompileResult{}, nil
	}
	return b.inner.CompileMethod(m)
}

// isGenericMethod reports whether m's code is parameterised over a generic
// method instantiation or a generic owning-type instantiation.
func isGenericMethod(m typesystem.MethodDesc) bool {
	if m.HasInstantiation() {
		return true
	}
	if it, ok := m.OwningType().(*typesystem.InstantiatedType); ok && it.Def.GenericArity > 0 {
		return true
	}
	if ecma, ok := m.(*typesystem.EcmaMethod); ok && ecma.Sig.GenericParamCount > 0 {
		return true
	}
	return false
}

// isCanonicalGenericCode reports whether m's generic instantiation (at the
// method level, the owning-type level, or both) is the shared canonical
// form rather than one concrete instantiation.
func isCanonicalGenericCode(m typesystem.MethodDesc) bool {
	canonical := true
	if im, ok := m.(*typesystem.InstantiatedMethod); ok {
		canonical = canonical && im.IsCanonicalMethod()
	}
	if it, ok := m.OwningType().(*typesystem.InstantiatedType); ok {
		canonical = canonical && it.Context().IsCanonicalSubtype(it, typesystem.Specific)
	}
	return canonical
}
