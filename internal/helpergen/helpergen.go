// Package helpergen is a go generate-style tool: it inspects a satellite Go
// package of ReadyToRunHelper implementations with golang.org/x/tools/go/packages
// and emits the HelperId -> symbol table the codegen backend consumes when a
// MethodWithGCInfo node reports a helper call, loading and type-checking the
// package to resolve a binding spec against real signatures.
package helpergen

import (
	"fmt"
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Binding is one resolved HelperId -> Go symbol mapping.
type Binding struct {
	HelperID   string
	Symbol     string // fully-qualified Go function name, e.g. "helpers.ThrowOverflow"
	ParamCount int
}

// Table is the ordered binding set a generated source file encodes.
type Table []Binding

// SymbolFor looks up the Go symbol bound to a HelperId.
func (t Table) SymbolFor(helperID string) (string, bool) {
	for _, b := range t {
		if b.HelperID == helperID {
			return b.Symbol, true
		}
	}
	return "", false
}

// Inspector loads one satellite helper-implementation package and resolves
// a requested set of HelperIds against its exported functions.
type Inspector struct {
	pkgPath string
	dir     string
	loaded  *packages.Package
}

// New builds an Inspector for the Go package at pkgPath. dir, if non-empty,
// sets the working directory packages.Load resolves pkgPath against.
func New(pkgPath, dir string) *Inspector {
	return &Inspector{pkgPath: pkgPath, dir: dir}
}

// Load type-checks the satellite package. Must be called once before
// Resolve.
func (ins *Inspector) Load() error {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax,
		Dir:  ins.dir,
	}
	pkgs, err := packages.Load(cfg, ins.pkgPath)
	if err != nil {
		return fmt.Errorf("helpergen: loading %s: %w", ins.pkgPath, err)
	}
	if len(pkgs) != 1 {
		return fmt.Errorf("helpergen: expected exactly one package for %s, got %d", ins.pkgPath, len(pkgs))
	}
	pkg := pkgs[0]
	var errs []string
	for _, e := range pkg.Errors {
		errs = append(errs, e.Msg)
	}
	if len(errs) > 0 {
		return fmt.Errorf("helpergen: %s: %s", ins.pkgPath, strings.Join(errs, "; "))
	}
	ins.loaded = pkg
	return nil
}

// helperFuncName is the naming convention a satellite package's exported
// function must follow to back a given HelperId: "Helper" + HelperId, e.g.
// HelperId "ThrowOverflow" resolves to func HelperThrowOverflow(...).
func helperFuncName(helperID string) string { return "Helper" + helperID }

// Resolve looks up helperIDs against the loaded package's exported function
// scope, returning one Binding per resolved id in the order requested.
// Any HelperId with no matching exported function is reported together in
// a single error, the same "collect every error, don't stop at the first"
// discipline Load uses for package.Errors.
func (ins *Inspector) Resolve(helperIDs []string) (Table, error) {
	if ins.loaded == nil {
		return nil, fmt.Errorf("helpergen: Load must be called before Resolve")
	}
	scope := ins.loaded.Types.Scope()

	var table Table
	var missing []string
	for _, id := range helperIDs {
		name := helperFuncName(id)
		obj := scope.Lookup(name)
		if obj == nil {
			missing = append(missing, id)
			continue
		}
		fn, ok := obj.(*types.Func)
		if !ok {
			missing = append(missing, id)
			continue
		}
		sig, ok := fn.Type().(*types.Signature)
		if !ok {
			missing = append(missing, id)
			continue
		}
		table = append(table, Binding{
			HelperID:   id,
			Symbol:     ins.loaded.PkgPath + "." + name,
			ParamCount: sig.Params().Len(),
		})
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("helpergen: no exported implementation for helper ids: %s", strings.Join(missing, ", "))
	}
	return table, nil
}

// GenerateSource renders table as a Go source file defining a package-level
// map literal, the generated-file half of the "inspect, then emit" pipeline
// (mirrors internal/ext/builder.go writing a generated Go source file from
// resolved bindings rather than compiling one by hand).
func GenerateSource(pkgName string, table Table) string {
	var b strings.Builder
	b.WriteString("// Code generated by helpergen. DO NOT EDIT.\n\n")
	b.WriteString("package " + pkgName + "\n\n")
	b.WriteString("// SymbolTable maps a ReadyToRunHelper's HelperId to the fully-qualified\n")
	b.WriteString("// Go symbol implementing it.\n")
	b.WriteString("var SymbolTable = map[string]string{\n")
	sorted := make(Table, len(table))
	copy(sorted, table)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].HelperID < sorted[j].HelperID })
	for _, bind := range sorted {
		fmt.Fprintf(&b, "\t%q: %q,\n", bind.HelperID, bind.Symbol)
	}
	b.WriteString("}\n")
	return b.String()
}
