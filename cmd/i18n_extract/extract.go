// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"path/filepath"

	"golang.org/x/tools/go/packages"
)

// key identifies a gettext entry. plural is empty for non-plural entries.
type key struct {
	ctx    string
	id     string
	plural string
}

type ref struct {
	file string
	line int
}

// trArgs gives the argument index of each string in a translation helper
// call. -1 means the helper has no such argument.
type trArgs struct {
	ctx, id, plural int
}

// trFuncs lists the helpers in package i18n that take a literal msgid.
var trFuncs = map[string]trArgs{
	"Tr":  {ctx: -1, id: 1, plural: -1}, // Tr(ctx, "msg", ...)
	"TrC": {ctx: 1, id: 2, plural: -1},  // TrC(ctx, "context", "msg", ...)
	"TrN": {ctx: -1, id: 1, plural: 2},  // TrN(ctx, "singular", "plural", n, ...)
}

// extractor collects references from the files of one package.
type extractor struct {
	refs        map[key][]ref
	projectRoot string
	fset        *token.FileSet
	info        *types.Info
	i18nPkgs    map[string]struct{}
}

// extractRefs walks every file of pkgs and returns the references to each message.
func extractRefs(pkgs []*packages.Package, projectRoot string, i18nPkgs map[string]struct{}) map[key][]ref {
	refs := map[key][]ref{}

	for _, p := range pkgs {
		if p.TypesInfo == nil {
			continue
		}

		e := &extractor{
			refs:        refs,
			projectRoot: projectRoot,
			fset:        p.Fset,
			info:        p.TypesInfo,
			i18nPkgs:    i18nPkgs,
		}

		for _, f := range p.Syntax {
			ast.Inspect(f, func(n ast.Node) bool {
				switch x := n.(type) {
				case *ast.CallExpr:
					e.handleCallExpr(x)
				case *ast.CompositeLit:
					e.handleCompositeLit(x)
				}

				return true
			})
		}
	}

	return refs
}

// findI18nPkgPaths returns the paths of packages named i18n that define a
// string-based MsgKey type. Matching on the type rather than the import path
// keeps the extractor working under any import alias.
func findI18nPkgPaths(pkgs []*packages.Package) map[string]struct{} {
	out := make(map[string]struct{})

	for _, p := range pkgs {
		if p.Name != "i18n" || p.Types == nil {
			continue
		}

		tn, ok := p.Types.Scope().Lookup("MsgKey").(*types.TypeName)
		if !ok {
			continue
		}

		if basic, ok := tn.Type().Underlying().(*types.Basic); ok && basic.Kind() == types.String {
			out[p.PkgPath] = struct{}{}
		}
	}

	return out
}

// constString evaluates expr to a constant string, following named constants
// and constant expressions such as "a" + "b".
func constString(info *types.Info, expr ast.Expr) (string, bool) {
	tv, ok := info.Types[expr]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
		return "", false
	}

	return constant.StringVal(tv.Value), true
}

// isMsgKey reports whether t is i18n.MsgKey, directly or through an alias.
func (e *extractor) isMsgKey(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}

	obj := named.Obj()
	if obj == nil || obj.Pkg() == nil || obj.Name() != "MsgKey" {
		return false
	}

	_, ok = e.i18nPkgs[obj.Pkg().Path()]

	return ok
}

// addConst records expr if it is a constant string.
func (e *extractor) addConst(expr ast.Expr) {
	if msg, ok := constString(e.info, expr); ok {
		e.addRef(expr.Pos(), key{id: msg})
	}
}

// handleCompositeLit finds constant strings stored as i18n.MsgKey in map,
// slice, array and struct literals.
func (e *extractor) handleCompositeLit(x *ast.CompositeLit) {
	tv, ok := e.info.Types[x]
	if !ok || tv.Type == nil {
		return
	}

	t := tv.Type
	if p, ok := t.Underlying().(*types.Pointer); ok {
		t = p.Elem()
	}

	switch u := t.Underlying().(type) {
	case *types.Map:
		keyIsMsg, valIsMsg := e.isMsgKey(u.Key()), e.isMsgKey(u.Elem())

		for _, elt := range x.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				continue
			}

			if keyIsMsg {
				e.addConst(kv.Key)
			}

			if valIsMsg {
				e.addConst(kv.Value)
			}
		}

	case *types.Slice:
		e.handleElems(x.Elts, u.Elem())

	case *types.Array:
		e.handleElems(x.Elts, u.Elem())

	case *types.Struct:
		for i, elt := range x.Elts {
			kv, keyed := elt.(*ast.KeyValueExpr)

			switch {
			case keyed:
				id, ok := kv.Key.(*ast.Ident)
				if !ok {
					continue
				}

				for j := range u.NumFields() {
					if f := u.Field(j); f.Name() == id.Name && e.isMsgKey(f.Type()) {
						e.addConst(kv.Value)
					}
				}
			case i < u.NumFields() && e.isMsgKey(u.Field(i).Type()):
				e.addConst(elt)
			}
		}
	}
}

func (e *extractor) handleElems(elts []ast.Expr, elem types.Type) {
	if !e.isMsgKey(elem) {
		return
	}

	for _, elt := range elts {
		if kv, ok := elt.(*ast.KeyValueExpr); ok {
			elt = kv.Value
		}

		e.addConst(elt)
	}
}

// handleCallExpr finds messages in i18n.MsgKey conversions, Tr helper calls,
// and constant arguments passed to any i18n.MsgKey parameter.
func (e *extractor) handleCallExpr(x *ast.CallExpr) {
	if tv, ok := e.info.Types[x.Fun]; ok && tv.IsType() {
		if len(x.Args) == 1 && e.isMsgKey(tv.Type) {
			e.addConst(x.Args[0])
		}

		return
	}

	if e.handleTrCall(x) {
		return
	}

	sig, ok := e.info.TypeOf(x.Fun).(*types.Signature)
	if !ok || sig.Params().Len() == 0 {
		return
	}

	params := sig.Params()
	last := params.Len() - 1

	for i, arg := range x.Args {
		var pt types.Type

		switch {
		case sig.Variadic() && i >= last:
			// f(xs...) passes a slice; its literal is handled as a composite.
			if x.Ellipsis != token.NoPos {
				continue
			}

			pt = params.At(last).Type().(*types.Slice).Elem()
		case i <= last:
			pt = params.At(i).Type()
		default:
			return
		}

		if e.isMsgKey(pt) {
			e.addConst(arg)
		}
	}
}

// handleTrCall records the msgid of a call to one of trFuncs and reports
// whether x was such a call.
func (e *extractor) handleTrCall(x *ast.CallExpr) bool {
	sel, ok := x.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}

	fn, ok := e.info.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}

	if _, ok := e.i18nPkgs[fn.Pkg().Path()]; !ok {
		return false
	}

	args, ok := trFuncs[fn.Name()]
	if !ok {
		return false
	}

	lookup := func(i int) (string, bool) {
		if i < 0 {
			return "", true
		}

		if i >= len(x.Args) {
			return "", false
		}

		return constString(e.info, x.Args[i])
	}

	ctx, okCtx := lookup(args.ctx)
	id, okID := lookup(args.id)
	plural, okPlural := lookup(args.plural)

	if okCtx && okID && okPlural {
		e.addRef(x.Args[args.id].Pos(), key{ctx: ctx, id: id, plural: plural})
	}

	return true
}

// addRef records a reference to k at pos, relative to the project root.
func (e *extractor) addRef(pos token.Pos, k key) {
	p := e.fset.Position(pos)

	file := p.Filename
	if rel, err := filepath.Rel(e.projectRoot, file); err == nil {
		file = rel
	}

	e.refs[k] = append(e.refs[k], ref{file: filepath.ToSlash(file), line: p.Line})
}
