package config

// Version is the current driver version.
// Set at build time via -ldflags "-X .../config.Version=...".
var Version = "0.1.0"

const (
	ManagedModuleExt = ".dll"
	ReferenceModuleExt = ".dllref"
)

// ModuleFileExtensions are the extensions the driver treats as managed
// modules when scanning a reference-module search directory.
var ModuleFileExtensions = []string{".dll", ".exe", ".winmd"}

// HasModuleExt returns true if the path ends with a recognized module
// extension.
func HasModuleExt(path string) bool {
	for _, ext := range ModuleFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// IsTestMode indicates the driver is running under the test harness. Set
// once at startup; never flipped mid-run.
var IsTestMode = false

const (
	SystemModuleName    = "System.Private.CoreLib"
	GeneratedModuleName = "ILCompiler.Generated"
	ObjectTypeName      = "Object"
	ArrayTypeName       = "Array"
	CanonTypeName       = "__Canon"
	UniversalCanonName  = "__UniversalCanon"
)
