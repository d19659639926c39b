// Package roots is the Root Providers component: the seeds
// for the dependency graph — entry point, library roots, reflection roots,
// and scan-filtered subsets.
package roots

import "github.com/aot-native/ilc/internal/typesystem"

// Service is the narrow surface a RootProvider adds roots through. The
// concrete implementations (rootGraphService in internal/scanner and in
// internal/compiler) each own a depgraph.Graph and an
// internal/nodes.Factory; this package never imports either, so root
// providers stay agnostic of whether they're feeding a scan or a compile
// graph.
type Service interface {
	// AddMethodRoot roots m unconditionally.
	AddMethodRoot(m typesystem.MethodDesc, reason string)

	// AddMethodRootWithExport roots m and additionally records it as a
	// named native export (e.g. a DllExport entry point).
	AddMethodRootWithExport(m typesystem.MethodDesc, reason, exportName string)

	// AddTypeRoot roots t unconditionally.
	AddTypeRoot(t typesystem.TypeDesc, reason string)

	// AddReflectionRoot marks t or m as a reflection root: it must retain
	// metadata and runtime mapping even if no ordinary code path
	// references it.
	AddReflectionRoot(entity any, reason string)
}

// Provider is the contract every root seed implements.
type Provider interface {
	AddCompilationRoots(svc Service) error
}
