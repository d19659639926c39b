// Package pipeline is the thin orchestration glue wiring every component
// into one end-to-end driver run: load modules, build the module group,
// seed roots, scan, compile, compute metadata, emit the object image.
package pipeline

import (
	"github.com/aot-native/ilc/internal/compiler"
	"github.com/aot-native/ilc/internal/config"
	"github.com/aot-native/ilc/internal/depgraph"
	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/metadata"
	"github.com/aot-native/ilc/internal/modulegroup"
	"github.com/aot-native/ilc/internal/roots"
	"github.com/aot-native/ilc/internal/scanner"
	"github.com/aot-native/ilc/internal/typesystem"
)

// Context carries state threaded through every stage of one driver run.
type Context struct {
	Options config.Options
	Logger  *diagnostics.Logger

	TypeCtx *typesystem.Context
	Modules map[string]*typesystem.ModuleDesc
	Primary *typesystem.ModuleDesc
	Group   modulegroup.Group

	Providers []roots.Provider

	Cache *scanner.Cache
	Scan  *scanner.ScanResults

	MetadataPolicy metadata.Policy
	Compiled       *compiler.Result
	Blob           *metadata.Blob
}

// Stage is one step of the driver run. Each stage owns exactly one pass or
// external collaborator; none of them know about the stages around them.
type Stage interface {
	Run(ctx *Context) error
}

// FuncStage adapts a plain function to Stage, for glue logic specific to one
// driver invocation (e.g. deciding which method is the entrypoint) that
// isn't worth a named type.
type FuncStage func(ctx *Context) error

func (f FuncStage) Run(ctx *Context) error { return f(ctx) }

// Pipeline is an ordered sequence of stages. It stops at the first failing
// stage: there is nothing useful to do with a compile against a scan that
// never finished, or an emit against a compile that errored.
type Pipeline struct {
	stages []Stage
}

// New builds a Pipeline from stages, run in order.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run drives ctx through every stage, stopping at (and returning) the first
// error.
func (p *Pipeline) Run(ctx *Context) error {
	for _, s := range p.stages {
		if err := s.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// trackingLevel converts the driver-facing config.DependencyTrackingLevel
// string enum into the graph engine's own int enum. The two stay distinct
// types on purpose: config.Options is the only thing a compiler.yaml file or
// environment variable is allowed to shape, and depgraph must not import
// config just to know its own tracking levels.
func trackingLevel(t config.DependencyTrackingLevel) depgraph.TrackingLevel {
	switch t {
	case config.TrackFirstEdge:
		return depgraph.TrackFirstEdge
	case config.TrackAll:
		return depgraph.TrackAll
	default:
		return depgraph.TrackNone
	}
}
