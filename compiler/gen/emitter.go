package gen

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/navgen/compiler/diag"
	"github.com/syssam/navgen/compiler/load"
)

// ShapeEmitter renders the navigation file of one entity: shapes, builders,
// ops and descriptors for every capability in its plan.
type ShapeEmitter interface {
	EmitShapes(plan *Plan, ep *EntityPlan) (*jen.File, error)
}

// ProjectionEmitter renders the projection file of one companion struct.
// Mapping problems are reported as diagnostics, not errors.
type ProjectionEmitter interface {
	EmitProjection(plan *Plan, cp *load.Companion) (*jen.File, diag.List, error)
}

// ShapeEmitterFunc adapts a function to ShapeEmitter.
type ShapeEmitterFunc func(*Plan, *EntityPlan) (*jen.File, error)

// EmitShapes calls f(plan, ep).
func (f ShapeEmitterFunc) EmitShapes(plan *Plan, ep *EntityPlan) (*jen.File, error) {
	return f(plan, ep)
}

// newFile returns a jennifer file for pkgPath carrying the configured header.
func newFile(cfg *Config, pkgPath, pkgName string) *jen.File {
	f := jen.NewFilePathName(pkgPath, pkgName)
	if cfg.Header != "" {
		f.HeaderComment(cfg.Header)
	}
	f.ImportName(cfg.RuntimePackage, load.PackageName(cfg.RuntimePackage))
	return f
}

// typeCode renders a declared field type.
func typeCode(t *load.TypeRef) jen.Code {
	switch t.Kind {
	case load.KindIdent:
		if t.Builtin() {
			return jen.Id(t.Name)
		}
		return jen.Qual(t.Pkg, t.Name)
	case load.KindQualified:
		return jen.Qual(t.Pkg, t.Name)
	case load.KindPointer:
		return jen.Op("*").Add(typeCode(t.Elem))
	case load.KindSlice:
		return jen.Index().Add(typeCode(t.Elem))
	case load.KindArray:
		return jen.Index(jen.Id(t.Len)).Add(typeCode(t.Elem))
	case load.KindMap:
		return jen.Map(typeCode(t.Key)).Add(typeCode(t.Elem))
	default:
		return jen.Id(t.Name)
	}
}
