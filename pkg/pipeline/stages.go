package pipeline

import (
	"fmt"

	"github.com/aot-native/ilc/internal/codegen"
	"github.com/aot-native/ilc/internal/compiler"
	"github.com/aot-native/ilc/internal/config"
	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/ilimport"
	"github.com/aot-native/ilc/internal/metadata"
	"github.com/aot-native/ilc/internal/modulegroup"
	"github.com/aot-native/ilc/internal/nodes"
	"github.com/aot-native/ilc/internal/objwriter"
	"github.com/aot-native/ilc/internal/roots"
	"github.com/aot-native/ilc/internal/scanner"
	"github.com/aot-native/ilc/internal/typesystem"
)

// LoadModules loads every spec into a fresh typesystem.Context and records
// which one is primary.
type LoadModules struct {
	Specs   []ilimport.ModuleSpec
	Primary string
}

func (s *LoadModules) Run(ctx *Context) error {
	ctx.TypeCtx = typesystem.NewContext()
	ctx.Modules = make(map[string]*typesystem.ModuleDesc, len(s.Specs))
	for _, spec := range s.Specs {
		mod, err := ilimport.LoadModule(ctx.TypeCtx, spec)
		if err != nil {
			return fmt.Errorf("pipeline: loading module %q: %w", spec.Name, err)
		}
		ctx.Modules[spec.Name] = mod
	}
	primary, ok := ctx.Modules[s.Primary]
	if !ok {
		return fmt.Errorf("pipeline: primary module %q not among loaded modules", s.Primary)
	}
	ctx.Primary = primary
	return nil
}

// BuildGroup selects the ModuleGroup policy named by ctx.Options.ModuleGroupMode.
type BuildGroup struct{}

func (s *BuildGroup) Run(ctx *Context) error {
	switch ctx.Options.ModuleGroupMode {
	case config.ModuleGroupSingleFile, "":
		ctx.Group = modulegroup.NewSingleFile(ctx.TypeCtx, ctx.Primary.Name)
	case config.ModuleGroupReadyToRunSingleAssembly:
		ctx.Group = modulegroup.NewReadyToRunSingleAssembly(ctx.TypeCtx, ctx.Primary, bubbleModules(ctx.Modules, ctx.Primary.Name))
	case config.ModuleGroupExternal:
		ctx.Group = modulegroup.NewExternal(ctx.TypeCtx, ctx.Primary.Name)
	default:
		return fmt.Errorf("pipeline: unknown module group mode %q", ctx.Options.ModuleGroupMode)
	}
	return nil
}

func bubbleModules(mods map[string]*typesystem.ModuleDesc, primary string) []*typesystem.ModuleDesc {
	names := ilimport.SortedModuleNames(mods)
	out := make([]*typesystem.ModuleDesc, 0, len(mods))
	for _, name := range names {
		if name == primary {
			continue
		}
		out = append(out, mods[name])
	}
	return out
}

// RunScanner drives the scanner pass. ScanPolicy defaults to a fresh
// metadata.Scanner when nil, and every roots.ReflectionRoots provider's
// entries are recorded against it before the scan runs, so
// DependenciesDueToReflectability sees them during graph marking rather
// than only after the fact.
type RunScanner struct {
	Tracking   config.DependencyTrackingLevel
	ScanPolicy *metadata.Scanner
	// Bodies should be the same BodyProvider later passed to RunCompiler,
	// so the scan's closure is a superset of what the compiler will request.
	Bodies codegen.BodyProvider
}

func (s *RunScanner) Run(ctx *Context) error {
	scanPolicy := s.ScanPolicy
	if scanPolicy == nil {
		scanPolicy = metadata.NewScanner()
	}
	for _, p := range ctx.Providers {
		if rr, ok := p.(*roots.ReflectionRoots); ok {
			for _, e := range rr.Entries {
				scanPolicy.RecordReflectable(e.Entity)
			}
		}
	}

	if ctx.Options.ScanCachePath != "" {
		cache, err := scanner.OpenCache(ctx.Options.ScanCachePath)
		if err != nil {
			return fmt.Errorf("pipeline: opening scan cache: %w", err)
		}
		ctx.Cache = cache
	}

	var scanBodies nodes.ScanBodyProvider
	if s.Bodies != nil {
		scanBodies = codegen.AsScanBodyProvider(s.Bodies)
	}
	result, err := scanner.Run(ctx.TypeCtx, ctx.Group, ctx.Logger, trackingLevel(s.Tracking), scanPolicy, scanBodies, ctx.Providers)
	if err != nil {
		return fmt.Errorf("pipeline: scanner pass: %w", err)
	}
	ctx.Scan = result
	ctx.MetadataPolicy = metadata.NewUsageBased(result)

	if ctx.Cache != nil {
		fp := scanner.Fingerprint(ilimport.SortedModuleNames(ctx.Modules), string(ctx.Options.ModuleGroupMode))
		if err := ctx.Cache.Store(fp, result); err != nil {
			ctx.Logger.Warn(diagnostics.InvalidProgram, "scan cache store failed: %s", err.Error())
		}
	}
	return nil
}

// RunCompiler drives the compiler pass against ctx.Scan. Backend defaults to
// an in-process stub backend; when ctx.Options.CodegenBackendAddr is set and
// Backend is nil, it dials the remote codegen service instead, resolving a
// response's method/type keys through ctx.Scan (see codegen.Resolver).
type RunCompiler struct {
	Backend  nodes.Backend
	Bodies   codegen.BodyProvider
	Tracking config.DependencyTrackingLevel
}

func (s *RunCompiler) Run(ctx *Context) error {
	backend := s.Backend
	if backend == nil {
		if ctx.Options.CodegenBackendAddr != "" {
			remote, err := codegen.DialRemoteBackend(ctx.Options.CodegenBackendAddr, ctx.Scan)
			if err != nil {
				return fmt.Errorf("pipeline: dialing codegen backend: %w", err)
			}
			backend = remote
		} else {
			backend = codegen.NewStubBackend(s.Bodies)
		}
	}

	result, err := compiler.Run(ctx.TypeCtx, ctx.Group, ctx.Logger, ctx.Scan, backend, ctx.MetadataPolicy, ctx.Options, trackingLevel(s.Tracking), ctx.Providers)
	if err != nil {
		return fmt.Errorf("pipeline: compiler pass: %w", err)
	}
	ctx.Compiled = result
	return nil
}

// ComputeMetadataStage builds the metadata blob over every method and type
// the scan flagged as metadata-bearing, under ctx.MetadataPolicy.
type ComputeMetadataStage struct{}

func (s *ComputeMetadataStage) Run(ctx *Context) error {
	entities := make([]any, 0, len(ctx.Scan.MethodsWithMetadata)+len(ctx.Scan.TypesWithMetadata))
	for _, m := range ctx.Scan.MethodsWithMetadata {
		entities = append(entities, m)
	}
	for _, t := range ctx.Scan.TypesWithMetadata {
		entities = append(entities, t)
	}

	blob, err := metadata.ComputeMetadata(ctx.MetadataPolicy, entities)
	if err != nil {
		return fmt.Errorf("pipeline: computing metadata: %w", err)
	}
	ctx.Blob = blob
	return nil
}

// EmitObjectStage writes the compiled image to ctx.Options.OutputPath.
type EmitObjectStage struct {
	Writer objwriter.Writer
}

func (s *EmitObjectStage) Run(ctx *Context) error {
	w := s.Writer
	if w == nil {
		w = objwriter.New()
	}
	if err := w.EmitObject(ctx.Primary, ctx.Options.OutputPath, ctx.Compiled.Marked, ctx.Compiled.Factory); err != nil {
		return fmt.Errorf("pipeline: emitting object: %w", err)
	}
	return nil
}
