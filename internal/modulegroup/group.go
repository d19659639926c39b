// Package modulegroup answers the single question every other pass defers
// to: is this type or method body part of "this compilation", or does it
// live across the version boundary in something already built? No other
// component may second-guess a ModuleGroup's answer.
package modulegroup

import (
	"github.com/aot-native/ilc/internal/typesystem"
	"github.com/google/uuid"
)

// Group is the ModuleGroup contract.
type Group interface {
	// ContainsType reports whether T's defining module is part of this
	// compilation's own image (as opposed to something resolved externally).
	ContainsType(t typesystem.TypeDesc) bool

	// ContainsMethodBody reports whether M's body is compiled into this
	// image. unboxingStub is set when the caller is asking on behalf of a
	// value-type unboxing thunk, which some policies treat as always local.
	ContainsMethodBody(m typesystem.MethodDesc, unboxingStub bool) bool

	// VersionsWithMethodBody is the stronger claim: the caller may inline
	// across the module boundary into M, not merely call it.
	VersionsWithMethodBody(m typesystem.MethodDesc) bool

	// GeneratedAssembly is the synthetic module that owns compiler-generated
	// stubs (unboxing thunks, special dictionary thunks) for this policy.
	GeneratedAssembly() *typesystem.ModuleDesc
}

func ownerModule(t typesystem.TypeDesc) *typesystem.ModuleDesc {
	switch v := t.(type) {
	case *typesystem.DefType:
		return v.Module
	case *typesystem.InstantiatedType:
		return ownerModule(v.Def)
	default:
		return nil
	}
}

func newGeneratedAssembly(ctx *typesystem.Context, forModule string) *typesystem.ModuleDesc {
	return typesystem.NewModuleDesc(ctx, forModule+".$generated."+uuid.NewString(), nil)
}

// SingleFile is the simplest policy: every type and method presented to it
// is considered local, as for a self-contained single-module image.
type SingleFile struct {
	generated *typesystem.ModuleDesc
}

// NewSingleFile builds the SingleFile policy, creating its generated-stub
// module eagerly under ctx.
func NewSingleFile(ctx *typesystem.Context, moduleName string) *SingleFile {
	return &SingleFile{generated: newGeneratedAssembly(ctx, moduleName)}
}

func (g *SingleFile) ContainsType(t typesystem.TypeDesc) bool                      { return true }
func (g *SingleFile) ContainsMethodBody(m typesystem.MethodDesc, _ bool) bool      { return true }
func (g *SingleFile) VersionsWithMethodBody(m typesystem.MethodDesc) bool          { return true }
func (g *SingleFile) GeneratedAssembly() *typesystem.ModuleDesc                    { return g.generated }

// ReadyToRunSingleAssembly compiles one input module plus a version-bubble
// set of modules whose method bodies it is allowed to inline across, while
// still emitting call-only dependencies on everything else.
type ReadyToRunSingleAssembly struct {
	input     *typesystem.ModuleDesc
	bubble    map[*typesystem.ModuleDesc]bool
	generated *typesystem.ModuleDesc
}

// NewReadyToRunSingleAssembly builds the policy for compiling input with
// the additional given version-bubble modules versionable alongside it.
func NewReadyToRunSingleAssembly(ctx *typesystem.Context, input *typesystem.ModuleDesc, bubble []*typesystem.ModuleDesc) *ReadyToRunSingleAssembly {
	b := make(map[*typesystem.ModuleDesc]bool, len(bubble)+1)
	b[input] = true
	for _, m := range bubble {
		b[m] = true
	}
	return &ReadyToRunSingleAssembly{
		input:     input,
		bubble:    b,
		generated: newGeneratedAssembly(ctx, input.Name),
	}
}

func (g *ReadyToRunSingleAssembly) ContainsType(t typesystem.TypeDesc) bool {
	mod := ownerModule(t)
	return mod != nil && g.bubble[mod]
}

func (g *ReadyToRunSingleAssembly) ContainsMethodBody(m typesystem.MethodDesc, unboxingStub bool) bool {
	if unboxingStub {
		// Unboxing thunks are always synthesised locally, regardless of
		// where the underlying value type's declaring module sits.
		return true
	}
	mod := ownerModule(m.OwningType())
	return mod != nil && g.bubble[mod]
}

// VersionsWithMethodBody is strictly narrower than ContainsMethodBody: only
// the exact input module may be inlined across, not the whole version
// bubble (a bubble member can still be serviced independently later).
func (g *ReadyToRunSingleAssembly) VersionsWithMethodBody(m typesystem.MethodDesc) bool {
	mod := ownerModule(m.OwningType())
	return mod == g.input
}

func (g *ReadyToRunSingleAssembly) GeneratedAssembly() *typesystem.ModuleDesc { return g.generated }

// External treats every presented entity as belonging to something already
// built elsewhere: used when compiling a root set that only calls into a
// previously produced image (e.g. scanning a plugin module against a
// fixed, already-compiled host).
type External struct {
	generated *typesystem.ModuleDesc
}

// NewExternal builds the External policy.
func NewExternal(ctx *typesystem.Context, moduleName string) *External {
	return &External{generated: newGeneratedAssembly(ctx, moduleName)}
}

func (g *External) ContainsType(t typesystem.TypeDesc) bool                 { return false }
func (g *External) ContainsMethodBody(m typesystem.MethodDesc, _ bool) bool { return false }
func (g *External) VersionsWithMethodBody(m typesystem.MethodDesc) bool     { return false }
func (g *External) GeneratedAssembly() *typesystem.ModuleDesc               { return g.generated }
