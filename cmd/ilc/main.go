// Command ilc is the driver entrypoint: it packs the environment and an
// optional compiler.yaml into a config.Options, loads the module set named
// on the command line, and runs the full scan -> compile -> emit pipeline
// against it. There is no language front end here, only a module set and an
// output path.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aot-native/ilc/internal/codegen"
	"github.com/aot-native/ilc/internal/config"
	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/ilimport"
	"github.com/aot-native/ilc/internal/objwriter"
	"github.com/aot-native/ilc/internal/roots"
	"github.com/aot-native/ilc/internal/typesystem"
	"github.com/aot-native/ilc/pkg/pipeline"
)

// CodegenBackendOverride lets a release build pin a remote codegen service
// address at link time (-ldflags "-X main.CodegenBackendOverride=...")
// without touching ROOT_CANONICAL_CODE-style env plumbing.
var CodegenBackendOverride = ""

type cliFlags struct {
	modules     string
	primary     string
	output      string
	yamlConfig  string
	cachePath   string
	entrypoint  string
	exportName  string
	backendAddr string
	verbose     bool
}

func parseFlags(args []string) (cliFlags, error) {
	fs := flag.NewFlagSet("ilc", flag.ContinueOnError)
	var f cliFlags
	fs.StringVar(&f.modules, "modules", "", "comma-separated list of module spec JSON files")
	fs.StringVar(&f.primary, "primary", "", "name of the primary module among -modules")
	fs.StringVar(&f.output, "o", "out.ilcimg", "output image path")
	fs.StringVar(&f.yamlConfig, "config", "compiler.yaml", "compiler.yaml override path")
	fs.StringVar(&f.cachePath, "cache", "", "sqlite scan-cache path, empty disables caching")
	fs.StringVar(&f.entrypoint, "entrypoint", "", "Namespace.Type::Method to additionally root as a single-method entrypoint")
	fs.StringVar(&f.exportName, "export", "", "export name for -entrypoint, if set")
	fs.StringVar(&f.backendAddr, "codegen-addr", "", "remote codegen service address; empty uses the in-process stub backend")
	fs.BoolVar(&f.verbose, "v", false, "log every method as compilation begins")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return f, nil
}

func buildOptions(f cliFlags) (config.Options, error) {
	opts := config.FromEnv(config.Default(), os.Getenv)
	opts, err := config.LoadYAMLOverrides(opts, f.yamlConfig)
	if err != nil {
		return config.Options{}, err
	}
	opts.OutputPath = f.output
	opts.ScanCachePath = f.cachePath
	opts.Verbose = opts.Verbose || f.verbose
	opts.CodegenBackendAddr = f.backendAddr
	if opts.CodegenBackendAddr == "" {
		opts.CodegenBackendAddr = CodegenBackendOverride
	}
	return opts, nil
}

func loadModuleSpecs(modulesFlag string) ([]ilimport.ModuleSpec, error) {
	if modulesFlag == "" {
		return nil, fmt.Errorf("ilc: -modules is required")
	}
	var specs []ilimport.ModuleSpec
	for _, path := range strings.Split(modulesFlag, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		spec, err := ilimport.LoadModuleSpecFile(path)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// resolveEntrypoint looks up "Namespace.Type::Method" against the primary
// module's loaded type table.
func resolveEntrypoint(ctx *pipeline.Context, ref string) (typesystem.MethodDesc, error) {
	typeAndMethod := strings.SplitN(ref, "::", 2)
	if len(typeAndMethod) != 2 {
		return nil, fmt.Errorf("ilc: -entrypoint must be Namespace.Type::Method, got %q", ref)
	}
	qualified, methodName := typeAndMethod[0], typeAndMethod[1]
	namespace, name := qualified, ""
	if idx := strings.LastIndex(qualified, "."); idx >= 0 {
		namespace, name = qualified[:idx], qualified[idx+1:]
	} else {
		name = qualified
	}

	def, err := ctx.TypeCtx.GetType(ctx.Primary, namespace, name)
	if err != nil {
		return nil, err
	}
	for _, m := range def.DeclaredMethods {
		if m.Name() == methodName {
			return m, nil
		}
	}
	return nil, fmt.Errorf("ilc: method %s not found on %s", methodName, qualified)
}

func buildProviders(ctx *pipeline.Context, f cliFlags) error {
	modules := make([]*typesystem.ModuleDesc, 0, len(ctx.Modules))
	for _, name := range ilimport.SortedModuleNames(ctx.Modules) {
		modules = append(modules, ctx.Modules[name])
	}

	providers := []roots.Provider{
		&roots.ReadyToRunLibrary{
			Ctx:     ctx.TypeCtx,
			Modules: modules,
			Config:  roots.RootingConfig{RootCanonicalCode: ctx.Options.RootCanonicalCode},
			Logger:  ctx.Logger,
		},
	}

	if f.entrypoint != "" {
		m, err := resolveEntrypoint(ctx, f.entrypoint)
		if err != nil {
			return err
		}
		if f.exportName != "" {
			providers = append(providers, &roots.EcmaModuleEntrypoint{Entrypoint: m, ExportName: f.exportName})
		} else {
			providers = append(providers, &roots.SingleMethod{Method: m, Reason: "cli-entrypoint"})
		}
	}

	ctx.Providers = providers
	return nil
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	opts, err := buildOptions(f)
	if err != nil {
		return err
	}
	specs, err := loadModuleSpecs(f.modules)
	if err != nil {
		return err
	}
	primary := f.primary
	if primary == "" && len(specs) > 0 {
		primary = specs[0].Name
	}

	logger := diagnostics.NewLogger(os.Stderr, opts.Verbose)
	ctx := &pipeline.Context{Options: opts, Logger: logger}

	bodies := codegen.MapBodyProvider{}

	pl := pipeline.New(
		&pipeline.LoadModules{Specs: specs, Primary: primary},
		&pipeline.BuildGroup{},
		pipeline.FuncStage(func(c *pipeline.Context) error { return buildProviders(c, f) }),
		&pipeline.RunScanner{Tracking: opts.Tracking, Bodies: bodies},
		&pipeline.RunCompiler{Tracking: opts.Tracking, Bodies: bodies},
		&pipeline.ComputeMetadataStage{},
		&pipeline.EmitObjectStage{Writer: objwriter.New()},
	)

	if err := pl.Run(ctx); err != nil {
		return err
	}
	if ctx.Cache != nil {
		defer ctx.Cache.Close()
	}

	for _, d := range logger.Recorded() {
		fmt.Fprintln(os.Stderr, d.Message)
	}
	if logger.HasFatal() {
		return fmt.Errorf("ilc: aborting, a fatal diagnostic was recorded")
	}
	fmt.Fprintf(os.Stderr, "ilc: wrote %s (%d nodes compiled, %d bytes of metadata)\n",
		opts.OutputPath, len(ctx.Compiled.Marked), len(ctx.Blob.Bytes))
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
