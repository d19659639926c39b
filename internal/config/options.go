package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModuleGroupMode selects which ModuleGroup policy the driver builds.
// Kept as an explicit enum rather than a free-form string so a bad
// compiler.yaml value fails at load time, not deep inside the graph.
type ModuleGroupMode string

const (
	ModuleGroupSingleFile             ModuleGroupMode = "single-file"
	ModuleGroupReadyToRunSingleAssembly ModuleGroupMode = "r2r-single-assembly"
	ModuleGroupExternal                ModuleGroupMode = "external"
)

// DependencyTrackingLevel mirrors the graph engine's optional edge-provenance
// retention.
type DependencyTrackingLevel string

const (
	TrackNone     DependencyTrackingLevel = "none"
	TrackFirstEdge DependencyTrackingLevel = "first-edge"
	TrackAll      DependencyTrackingLevel = "all"
)

// Options is the single explicit configuration object threaded through the
// driver, rather than reading environment variables at arbitrary depth;
// only cmd/ilc is allowed to populate it, from the environment or a yaml
// file.
type Options struct {
	// RootCanonicalCode corresponds to ROOT_CANONICAL_CODE.
	RootCanonicalCode bool
	// NoGenericCode corresponds to NO_GENERIC_CODE.
	NoGenericCode bool
	// OnlyCanonicalCode corresponds to ONLY_CANONICAL_CODE.
	OnlyCanonicalCode bool

	ModuleGroupMode ModuleGroupMode
	Tracking        DependencyTrackingLevel

	// Verbose additionally logs every method as compilation begins.
	Verbose bool

	OutputPath string

	// CodegenBackendAddr, when non-empty, selects the gRPC remote codegen
	// backend instead of the in-process stub backend.
	CodegenBackendAddr string

	// ScanCachePath points at the on-disk sqlite scan cache. Empty disables
	// caching (every run re-scans from scratch).
	ScanCachePath string
}

// Default returns an Options with the driver's baseline policy: everything
// disabled, SingleFile module group, no edge tracking.
func Default() Options {
	return Options{
		ModuleGroupMode: ModuleGroupSingleFile,
		Tracking:        TrackNone,
	}
}

// fileOverrides is the subset of Options a compiler.yaml file may override.
// Kept distinct from Options so the yaml schema doesn't silently grow every
// time Options gains an in-memory-only field.
type fileOverrides struct {
	RootCanonicalCode  *bool   `yaml:"rootCanonicalCode"`
	NoGenericCode      *bool   `yaml:"noGenericCode"`
	OnlyCanonicalCode  *bool   `yaml:"onlyCanonicalCode"`
	ModuleGroupMode    *string `yaml:"moduleGroupMode"`
	Tracking           *string `yaml:"tracking"`
	Verbose            *bool   `yaml:"verbose"`
	CodegenBackendAddr *string `yaml:"codegenBackendAddr"`
	ScanCachePath      *string `yaml:"scanCachePath"`
}

// LoadYAMLOverrides reads a compiler.yaml file and applies any fields it
// sets on top of opts. A missing file is not an error: it simply means no
// overrides apply.
func LoadYAMLOverrides(opts Options, path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fo fileOverrides
	if err := yaml.Unmarshal(data, &fo); err != nil {
		return opts, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fo.RootCanonicalCode != nil {
		opts.RootCanonicalCode = *fo.RootCanonicalCode
	}
	if fo.NoGenericCode != nil {
		opts.NoGenericCode = *fo.NoGenericCode
	}
	if fo.OnlyCanonicalCode != nil {
		opts.OnlyCanonicalCode = *fo.OnlyCanonicalCode
	}
	if fo.ModuleGroupMode != nil {
		switch mode := ModuleGroupMode(*fo.ModuleGroupMode); mode {
		case ModuleGroupSingleFile, ModuleGroupReadyToRunSingleAssembly, ModuleGroupExternal:
			opts.ModuleGroupMode = mode
		default:
			return opts, fmt.Errorf("config: %s: unknown moduleGroupMode %q", path, *fo.ModuleGroupMode)
		}
	}
	if fo.Tracking != nil {
		opts.Tracking = DependencyTrackingLevel(*fo.Tracking)
	}
	if fo.Verbose != nil {
		opts.Verbose = *fo.Verbose
	}
	if fo.CodegenBackendAddr != nil {
		opts.CodegenBackendAddr = *fo.CodegenBackendAddr
	}
	if fo.ScanCachePath != nil {
		opts.ScanCachePath = *fo.ScanCachePath
	}

	return opts, nil
}

// FromEnv packs the three documented environment variables
// into opts. Called exactly once, from cmd/ilc/main.go.
func FromEnv(opts Options, lookup func(string) string) Options {
	isSet := func(name string) bool { return lookup(name) == "1" }
	opts.RootCanonicalCode = opts.RootCanonicalCode || isSet("ROOT_CANONICAL_CODE")
	opts.NoGenericCode = opts.NoGenericCode || isSet("NO_GENERIC_CODE")
	opts.OnlyCanonicalCode = opts.OnlyCanonicalCode || isSet("ONLY_CANONICAL_CODE")
	return opts
}
