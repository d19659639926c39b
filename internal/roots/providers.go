package roots

import (
	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/typesystem"
)

// RootingConfig is the explicit policy object library rooting reads instead
// of an environment variable at arbitrary depth.
type RootingConfig struct {
	// RootCanonicalCode mirrors ROOT_CANONICAL_CODE:
	// when set, ReadyToRunLibrary roots each generic type/method at its
	// canonical instantiation; when unset, generics are skipped at roots
	// entirely and reached only through concrete use sites.
	RootCanonicalCode bool
}

// SingleMethod roots exactly one method — the narrowest provider, used for
// a focused single-entrypoint compilation or a test harness target.
type SingleMethod struct {
	Method typesystem.MethodDesc
	Reason string
}

func (p *SingleMethod) AddCompilationRoots(svc Service) error {
	reason := p.Reason
	if reason == "" {
		reason = "single-method-root"
	}
	svc.AddMethodRoot(p.Method, reason)
	return nil
}

// EcmaModuleEntrypoint roots a module's designated entry point, exporting it
// under ExportName when non-empty.
type EcmaModuleEntrypoint struct {
	Entrypoint typesystem.MethodDesc
	ExportName string
}

func (p *EcmaModuleEntrypoint) AddCompilationRoots(svc Service) error {
	if p.ExportName != "" {
		svc.AddMethodRootWithExport(p.Entrypoint, "entrypoint", p.ExportName)
		return nil
	}
	svc.AddMethodRoot(p.Entrypoint, "entrypoint")
	return nil
}

// ReadyToRunLibrary roots every reachable method across a set of modules.
// Generic definitions are rooted at their canonical instantiation only
// when Config.RootCanonicalCode is set; otherwise they are skipped at
// roots and reached only through use sites elsewhere in the graph.
type ReadyToRunLibrary struct {
	Ctx     *typesystem.Context
	Modules []*typesystem.ModuleDesc
	Config  RootingConfig
	Logger  *diagnostics.Logger
}

func (p *ReadyToRunLibrary) AddCompilationRoots(svc Service) error {
	for _, mod := range p.Modules {
		for _, def := range mod.AllTypes() {
			p.rootType(svc, def)
		}
	}
	return nil
}

func (p *ReadyToRunLibrary) rootType(svc Service, def *typesystem.DefType) {
	if def.GenericArity > 0 {
		if !p.Config.RootCanonicalCode {
			return // without the rooting flag, skip generics entirely at roots
		}
		sentinel := p.Ctx.CanonSentinel(typesystem.Specific)
		args := make([]typesystem.TypeDesc, def.GenericArity)
		for i := range args {
			args[i] = sentinel
		}
		inst, err := p.Ctx.MakeInstantiatedType(def, args)
		if err != nil {
			p.warn(def.String(), err)
			return
		}
		svc.AddTypeRoot(inst, "library-root-canonical")
		p.rootMethodsOn(svc, def, inst)
		return
	}
	svc.AddTypeRoot(def, "library-root")
	p.rootMethodsOn(svc, def, def)
}

func (p *ReadyToRunLibrary) rootMethodsOn(svc Service, def *typesystem.DefType, owner typesystem.TypeDesc) {
	for _, m := range def.DeclaredMethods {
		if m.Abstract_ {
			continue
		}
		var target typesystem.MethodDesc = m
		if inst, ok := owner.(*typesystem.InstantiatedType); ok {
			target = p.Ctx.MakeMethodForInstantiatedType(m, inst)
		}
		if m.Sig.GenericParamCount > 0 {
			if !p.Config.RootCanonicalCode {
				continue // generic methods are skipped at roots without the flag, too
			}
			canon, err := p.Ctx.GetCanonMethodTarget(m, typesystem.Specific)
			if err != nil {
				p.warn(m.String(), err)
				continue
			}
			target = canon
		}
		svc.AddMethodRoot(target, "library-root")
	}
}

// warn replicates the source's policy of catching type-system exceptions
// silently in rooting paths: log and skip, without assuming the failure
// carries an actionable message beyond its Code.
func (p *ReadyToRunLibrary) warn(entity string, err error) {
	if p.Logger == nil {
		return
	}
	code := diagnostics.InvalidProgram
	if tse, ok := err.(*diagnostics.TypeSystemError); ok {
		code = tse.Code
	}
	p.Logger.Warn(code, "skipping library root %s: %s", entity, err.Error())
}

// ReflectionRootEntry is one entity that must retain metadata and runtime
// mapping regardless of ordinary reachability: static bases, thread
// statics, delegate marshalling stubs, struct marshalling layouts, module
// metadata blobs, read-only data blobs.
type ReflectionRootEntry struct {
	Entity any // typesystem.TypeDesc or typesystem.MethodDesc
	Reason string
}

// ReflectionRoots seeds the graph with a fixed list of reflection roots.
type ReflectionRoots struct {
	Entries []ReflectionRootEntry
}

func (p *ReflectionRoots) AddCompilationRoots(svc Service) error {
	for _, e := range p.Entries {
		svc.AddReflectionRoot(e.Entity, e.Reason)
	}
	return nil
}

// ScanLiveness is the query FilteredByScan needs from a completed scan:
// "did the scanner prove this entity live" (implemented by
// internal/scanner.ScanResults).
type ScanLiveness interface {
	IsMethodLive(m typesystem.MethodDesc) bool
	IsTypeLive(t typesystem.TypeDesc) bool
}

// FilteredByScan wraps another provider and admits only the entities the
// scanner proved live: used to re-root a
// second, narrower compiler pass (e.g. an R2R single-assembly recompile)
// against exactly what a prior scan already found reachable.
type FilteredByScan struct {
	Inner Provider
	Scan  ScanLiveness
}

func (p *FilteredByScan) AddCompilationRoots(svc Service) error {
	return p.Inner.AddCompilationRoots(&filteringService{inner: svc, scan: p.Scan})
}

type filteringService struct {
	inner Service
	scan  ScanLiveness
}

func (s *filteringService) AddMethodRoot(m typesystem.MethodDesc, reason string) {
	if s.scan.IsMethodLive(m) {
		s.inner.AddMethodRoot(m, reason)
	}
}

func (s *filteringService) AddMethodRootWithExport(m typesystem.MethodDesc, reason, exportName string) {
	if s.scan.IsMethodLive(m) {
		s.inner.AddMethodRootWithExport(m, reason, exportName)
	}
}

func (s *filteringService) AddTypeRoot(t typesystem.TypeDesc, reason string) {
	if s.scan.IsTypeLive(t) {
		s.inner.AddTypeRoot(t, reason)
	}
}

func (s *filteringService) AddReflectionRoot(entity any, reason string) {
	switch v := entity.(type) {
	case typesystem.MethodDesc:
		if s.scan.IsMethodLive(v) {
			s.inner.AddReflectionRoot(entity, reason)
		}
	case typesystem.TypeDesc:
		if s.scan.IsTypeLive(v) {
			s.inner.AddReflectionRoot(entity, reason)
		}
	default:
		s.inner.AddReflectionRoot(entity, reason)
	}
}
