// Package metadata is the Metadata Manager: the policy layer deciding which
// entities carry reflection metadata (a human-readable description, a
// runtime type/method/field mapping, or both) and what extra dependency
// edges that entails.
package metadata

import (
	"fmt"

	"github.com/aot-native/ilc/internal/roots"
	"github.com/aot-native/ilc/internal/typesystem"
)

// Category is a bitmask of what reflection support an entity gets.
type Category int

const (
	Description    Category = 1 << iota // human-readable name/signature
	RuntimeMapping                      // a runtime handle resolvable back to the entity
)

// Has reports whether flag is set in c.
func (c Category) Has(flag Category) bool { return c&flag != 0 }

// entityKey returns a kind tag and a stable interning key for a metadata
// entity, which is always a typesystem.TypeDesc, typesystem.MethodDesc, or
// *typesystem.FieldDesc.
func entityKey(entity any) (kind, key string) {
	switch v := entity.(type) {
	case typesystem.MethodDesc:
		return "method", typesystem.MethodKey(v)
	case *typesystem.FieldDesc:
		return "field", typesystem.FieldKey(v)
	case typesystem.TypeDesc:
		return "type", typesystem.TypeKey(v)
	default:
		return "unknown", fmt.Sprintf("%v", v)
	}
}

// Policy is the Metadata Manager contract.
type Policy interface {
	GetMetadataCategory(entity any) Category
	IsReflectionBlocked(entity any) bool

	// DependenciesDueToReflectability also satisfies nodes.ReflectabilityPolicy,
	// so any Policy can be handed straight to nodes.NewFactory.
	DependenciesDueToReflectability(t typesystem.TypeDesc) []typesystem.TypeDesc

	HasReflectionInvokeStubForInvokableMethod(m typesystem.MethodDesc) bool
	GetCanonicalReflectionInvokeStub(m typesystem.MethodDesc) (typesystem.MethodDesc, error)
}

// reflectabilityChain is the shared "what else must exist for t to be
// reflectable" computation every policy but Empty applies: t's base type
// and its runtime interfaces need their own metadata too, since a
// description of t is incomplete without them.
func reflectabilityChain(t typesystem.TypeDesc) []typesystem.TypeDesc {
	var out []typesystem.TypeDesc
	if base := t.BaseType(); base != nil {
		out = append(out, base)
	}
	out = append(out, t.RuntimeInterfaces()...)
	return out
}

// invokeStubFor builds (or reuses) the canonical reflection-invoke-stub
// synthetic method for m, the same "(Method, Kind)"-keyed synthesis
// internal/nodes uses for unboxing thunks.
func invokeStubFor(m typesystem.MethodDesc) (typesystem.MethodDesc, error) {
	if m.IsAbstract() {
		return nil, fmt.Errorf("metadata: %s has no body to invoke through reflection", m.String())
	}
	ctx := m.Context()
	owner := m.OwningType()
	sig := m.Signature()
	return ctx.MakeSyntheticMethod(owner, m.Name()+"$invoke", "reflection-invoke-stub", sig), nil
}

// Empty is the policy granting no reflection support to anything: every
// query returns the zero answer, so the Node Factory never pulls in a
// reflectability dependency.
type Empty struct{}

func (Empty) GetMetadataCategory(any) Category                                      { return 0 }
func (Empty) IsReflectionBlocked(any) bool                                          { return false }
func (Empty) DependenciesDueToReflectability(typesystem.TypeDesc) []typesystem.TypeDesc { return nil }
func (Empty) HasReflectionInvokeStubForInvokableMethod(typesystem.MethodDesc) bool  { return false }
func (Empty) GetCanonicalReflectionInvokeStub(m typesystem.MethodDesc) (typesystem.MethodDesc, error) {
	return nil, fmt.Errorf("metadata: Empty policy grants no invoke stub for %s", m.String())
}

// CompilerGenerated grants both Description and RuntimeMapping to an
// explicitly enumerated set of entities, identified by their interning key,
// and nothing else.
type CompilerGenerated struct {
	Entities map[string]bool // entityKey -> member of the explicit list
}

func NewCompilerGenerated(entities ...any) *CompilerGenerated {
	cg := &CompilerGenerated{Entities: make(map[string]bool, len(entities))}
	for _, e := range entities {
		_, key := entityKey(e)
		cg.Entities[key] = true
	}
	return cg
}

func (p *CompilerGenerated) listed(entity any) bool {
	_, key := entityKey(entity)
	return p.Entities[key]
}

func (p *CompilerGenerated) GetMetadataCategory(entity any) Category {
	if p.listed(entity) {
		return Description | RuntimeMapping
	}
	return 0
}

func (p *CompilerGenerated) IsReflectionBlocked(any) bool { return false }

func (p *CompilerGenerated) DependenciesDueToReflectability(t typesystem.TypeDesc) []typesystem.TypeDesc {
	if !p.listed(t) {
		return nil
	}
	return reflectabilityChain(t)
}

func (p *CompilerGenerated) HasReflectionInvokeStubForInvokableMethod(m typesystem.MethodDesc) bool {
	return p.listed(m) && !m.IsAbstract()
}

func (p *CompilerGenerated) GetCanonicalReflectionInvokeStub(m typesystem.MethodDesc) (typesystem.MethodDesc, error) {
	if !p.listed(m) {
		return nil, fmt.Errorf("metadata: %s is not in the compiler-generated reflection set", m.String())
	}
	return invokeStubFor(m)
}

// UsageBased grants both categories to every entity the scanner proved
// live, unless blocked — the "everything compiled becomes reflectable"
// policy.
type UsageBased struct {
	Scan roots.ScanLiveness
}

func NewUsageBased(scan roots.ScanLiveness) *UsageBased {
	return &UsageBased{Scan: scan}
}

func (p *UsageBased) live(entity any) bool {
	switch v := entity.(type) {
	case typesystem.MethodDesc:
		return p.Scan.IsMethodLive(v)
	case *typesystem.FieldDesc:
		return p.Scan.IsTypeLive(v.FieldType())
	case typesystem.TypeDesc:
		return p.Scan.IsTypeLive(v)
	default:
		return false
	}
}

func (p *UsageBased) GetMetadataCategory(entity any) Category {
	if p.live(entity) {
		return Description | RuntimeMapping
	}
	return 0
}

func (p *UsageBased) IsReflectionBlocked(any) bool { return false }

func (p *UsageBased) DependenciesDueToReflectability(t typesystem.TypeDesc) []typesystem.TypeDesc {
	if !p.live(t) {
		return nil
	}
	return reflectabilityChain(t)
}

func (p *UsageBased) HasReflectionInvokeStubForInvokableMethod(m typesystem.MethodDesc) bool {
	return p.live(m) && !m.IsAbstract()
}

func (p *UsageBased) GetCanonicalReflectionInvokeStub(m typesystem.MethodDesc) (typesystem.MethodDesc, error) {
	if !p.live(m) {
		return nil, fmt.Errorf("metadata: %s was never proved live by the scan", m.String())
	}
	return invokeStubFor(m)
}

// Scanner is the two-phase policy used during the scanner pass itself: it
// only records that an entity is reflectable, so the dependency it implies
// can be threaded through the scan graph, and defers actual blob generation
// to whichever policy drives the compiler pass.
type Scanner struct {
	recorded map[string]bool
}

func NewScanner() *Scanner {
	return &Scanner{recorded: make(map[string]bool)}
}

// RecordReflectable marks entity as needing reflection support; called by
// the scanner as it discovers reflection roots and usage sites.
func (p *Scanner) RecordReflectable(entity any) {
	_, key := entityKey(entity)
	p.recorded[key] = true
}

func (p *Scanner) isRecorded(entity any) bool {
	_, key := entityKey(entity)
	return p.recorded[key]
}

func (p *Scanner) GetMetadataCategory(entity any) Category {
	if p.isRecorded(entity) {
		return Description | RuntimeMapping
	}
	return 0
}

func (p *Scanner) IsReflectionBlocked(any) bool { return false }

func (p *Scanner) DependenciesDueToReflectability(t typesystem.TypeDesc) []typesystem.TypeDesc {
	if !p.isRecorded(t) {
		return nil
	}
	return reflectabilityChain(t)
}

func (p *Scanner) HasReflectionInvokeStubForInvokableMethod(m typesystem.MethodDesc) bool {
	return p.isRecorded(m) && !m.IsAbstract()
}

func (p *Scanner) GetCanonicalReflectionInvokeStub(m typesystem.MethodDesc) (typesystem.MethodDesc, error) {
	if !p.isRecorded(m) {
		return nil, fmt.Errorf("metadata: %s was never recorded as reflectable during scan", m.String())
	}
	return invokeStubFor(m)
}

// Recorded returns the set of recorded entity keys, for handing to a
// compiler-pass policy that needs to know what the scan found.
func (p *Scanner) Recorded() map[string]bool {
	out := make(map[string]bool, len(p.recorded))
	for k := range p.recorded {
		out[k] = true
	}
	return out
}
