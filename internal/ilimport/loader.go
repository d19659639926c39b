package ilimport

import (
	"sort"

	"github.com/aot-native/ilc/internal/diagnostics"
	"github.com/aot-native/ilc/internal/typesystem"
)

// TypeRow is one row of a module's type-definition table.
type TypeRow struct {
	Namespace    string
	Name         string
	IsValueType  bool
	IsInterface  bool
	IsAbstract   bool
	GenericArity int
	Primitive    typesystem.PrimitiveKind
	BaseType     string   // "Namespace.Name" of the base type, "" for none
	Interfaces   []string // "Namespace.Name" of directly implemented interfaces
}

// MethodRow is one row of a module's method-definition table.
type MethodRow struct {
	OwnerNamespace string
	OwnerName      string
	Name           string
	Static         bool
	Abstract       bool
	Virtual        bool
	// Overrides, if set, is "Namespace.Name.Method" of the ancestor slot
	// this method overrides. Empty for a freshly introduced virtual slot.
	Overrides         string
	ParamTypeNames    []string // "Namespace.Name" for each parameter, resolved against already-loaded types
	ReturnTypeName    string
	GenericParamCount int
}

// FieldRow is one row of a module's field-definition table.
type FieldRow struct {
	OwnerNamespace string
	OwnerName      string
	Name           string
	TypeName       string
	Static         bool
	HasRVA         bool
	RVA            uint32
}

// ModuleSpec is the declarative description a loader builds a ModuleDesc
// from — the table-row shape a real ECMA-335 metadata reader would produce,
// factored out here so tests and the scanner/compiler fixtures don't need
// an actual PE file.
type ModuleSpec struct {
	Name        string
	DataSection []byte
	Types       []TypeRow
	Methods     []MethodRow
	Fields      []FieldRow
}

// LoadModule builds a fully-wired typesystem.ModuleDesc from spec, resolving
// base types, interfaces, and override chains in two passes: types first,
// then members, so forward references across rows always resolve.
func LoadModule(ctx *typesystem.Context, spec ModuleSpec) (*typesystem.ModuleDesc, error) {
	reader := SectionReader{Data: spec.DataSection}
	mod := typesystem.NewModuleDesc(ctx, spec.Name, reader)

	defs := make(map[string]*typesystem.DefType, len(spec.Types))
	for _, row := range spec.Types {
		key := row.Namespace + "." + row.Name
		def := typesystem.NewDefType(ctx, mod, row.Namespace, row.Name)
		def.IsValueType = row.IsValueType
		def.IsInterface = row.IsInterface
		def.IsAbstract = row.IsAbstract
		def.GenericArity = row.GenericArity
		def.Primitive = row.Primitive
		defs[key] = def
		mod.AddDefType(row.Namespace, row.Name, def)
	}

	resolve := func(name string) (*typesystem.DefType, error) {
		if name == "" {
			return nil, nil
		}
		d, ok := defs[name]
		if !ok {
			return nil, diagnostics.NewTypeSystemError(diagnostics.TypeLoad, name, "base/interface type not found in module "+spec.Name)
		}
		return d, nil
	}

	for _, row := range spec.Types {
		def := defs[row.Namespace+"."+row.Name]
		base, err := resolve(row.BaseType)
		if err != nil {
			return nil, err
		}
		def.BaseTypeDef = base
		for _, ifaceName := range row.Interfaces {
			iface, err := resolve(ifaceName)
			if err != nil {
				return nil, err
			}
			def.Interfaces = append(def.Interfaces, iface)
		}
	}

	methodIndex := make(map[string]*typesystem.EcmaMethod)
	for _, row := range spec.Methods {
		owner, ok := defs[row.OwnerNamespace+"."+row.OwnerName]
		if !ok {
			return nil, diagnostics.NewTypeSystemError(diagnostics.TypeLoad, row.OwnerNamespace+"."+row.OwnerName, "method owner not found")
		}
		params := make([]typesystem.TypeDesc, len(row.ParamTypeNames))
		for i, pname := range row.ParamTypeNames {
			pd, err := resolve(pname)
			if err != nil {
				return nil, err
			}
			params[i] = pd
		}
		ret, err := resolve(row.ReturnTypeName)
		if err != nil {
			return nil, err
		}
		if ret == nil {
			return nil, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, row.Name, "missing return type")
		}

		sig := &typesystem.MethodSignature{ReturnType: ret, Params: params, GenericParamCount: row.GenericParamCount}
		m := typesystem.NewEcmaMethod(ctx, owner, row.Name, sig)
		m.Static = row.Static
		m.Abstract_ = row.Abstract
		m.Virtual_ = row.Virtual

		owner.DeclaredMethods = append(owner.DeclaredMethods, m)
		methodIndex[row.OwnerNamespace+"."+row.OwnerName+"."+row.Name] = m
	}

	// Second member pass: wire override chains now that every method exists.
	for _, row := range spec.Methods {
		if row.Overrides == "" {
			continue
		}
		m := methodIndex[row.OwnerNamespace+"."+row.OwnerName+"."+row.Name]
		target, ok := methodIndex[row.Overrides]
		if !ok {
			return nil, diagnostics.NewTypeSystemError(diagnostics.MissingMethod, row.Overrides, "override target not found")
		}
		m.Overrides = target
	}

	for _, row := range spec.Fields {
		owner, ok := defs[row.OwnerNamespace+"."+row.OwnerName]
		if !ok {
			return nil, diagnostics.NewTypeSystemError(diagnostics.TypeLoad, row.OwnerNamespace+"."+row.OwnerName, "field owner not found")
		}
		typ, err := resolve(row.TypeName)
		if err != nil {
			return nil, err
		}
		var field *typesystem.FieldDesc
		if row.HasRVA {
			field = ctx.MakeRVAField(owner, row.Name, typ, row.RVA)
		} else {
			field = ctx.MakeField(owner, row.Name, typ, row.Static)
		}
		owner.DeclaredFields = append(owner.DeclaredFields, field)
	}

	return mod, nil
}

// SortedModuleNames is a small determinism helper used by root providers
// that need to walk every loaded module in a stable order.
func SortedModuleNames(mods map[string]*typesystem.ModuleDesc) []string {
	names := make([]string, 0, len(mods))
	for name := range mods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
