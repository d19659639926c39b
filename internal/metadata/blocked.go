package metadata

import "github.com/aot-native/ilc/internal/typesystem"

// BlockedInternals wraps another Policy and additionally blocks: synthetic
// (non-ECMA) methods, every method declared on Array<T>, and any entity
// named in AttributeBlocked (standing in for a metadata attribute the
// loader never actually parses).
type BlockedInternals struct {
	Inner           Policy
	AttributeBlocked map[string]bool
}

func NewBlockedInternals(inner Policy, attributeBlocked ...any) *BlockedInternals {
	b := &BlockedInternals{Inner: inner, AttributeBlocked: make(map[string]bool, len(attributeBlocked))}
	for _, e := range attributeBlocked {
		_, key := entityKey(e)
		b.AttributeBlocked[key] = true
	}
	return b
}

func isSyntheticMethod(entity any) bool {
	_, ok := entity.(*typesystem.SyntheticMethod)
	return ok
}

func isArrayMethod(entity any) bool {
	m, ok := entity.(typesystem.MethodDesc)
	if !ok {
		return false
	}
	_, onArray := m.OwningType().(*typesystem.ArrayType)
	return onArray
}

func (b *BlockedInternals) attributeBlocked(entity any) bool {
	_, key := entityKey(entity)
	return b.AttributeBlocked[key]
}

// IsReflectionBlocked reports whether entity is blocked, either by this
// policy's own rules or by the wrapped policy's.
func (b *BlockedInternals) IsReflectionBlocked(entity any) bool {
	if isSyntheticMethod(entity) || isArrayMethod(entity) || b.attributeBlocked(entity) {
		return true
	}
	return b.Inner.IsReflectionBlocked(entity)
}

func (b *BlockedInternals) GetMetadataCategory(entity any) Category {
	if b.IsReflectionBlocked(entity) {
		return 0
	}
	return b.Inner.GetMetadataCategory(entity)
}

func (b *BlockedInternals) DependenciesDueToReflectability(t typesystem.TypeDesc) []typesystem.TypeDesc {
	if b.IsReflectionBlocked(t) {
		return nil
	}
	return b.Inner.DependenciesDueToReflectability(t)
}

func (b *BlockedInternals) HasReflectionInvokeStubForInvokableMethod(m typesystem.MethodDesc) bool {
	if b.IsReflectionBlocked(m) {
		return false
	}
	return b.Inner.HasReflectionInvokeStubForInvokableMethod(m)
}

func (b *BlockedInternals) GetCanonicalReflectionInvokeStub(m typesystem.MethodDesc) (typesystem.MethodDesc, error) {
	if b.IsReflectionBlocked(m) {
		return nil, &blockedError{entity: m.String()}
	}
	return b.Inner.GetCanonicalReflectionInvokeStub(m)
}

type blockedError struct{ entity string }

func (e *blockedError) Error() string { return "metadata: " + e.entity + " is blocked from reflection" }
