package lang

import "fmt"

// Builtin type names the validator accepts without a declaration.
var builtinTypes = map[string]bool{
	"Int":      true,
	"Bytes":    true,
	"Bool":     true,
	"String":   true,
	"Address":  true,
	"UtxoRef":  true,
	"AnyAsset": true,
	"List":     true,
}

// Builtin value names usable in expressions without a declaration.
var builtinValues = map[string]bool{
	"fees":  true,
	"Ada":   true,
	"true":  true,
	"false": true,
}

// Validate runs the semantic passes over a parsed program and returns
// the semantic diagnostics: duplicate declarations, unknown types, and
// unresolved references. It never mutates the program and is safe to
// call concurrently.
func Validate(prog *Program) []Diagnostic {
	if prog == nil {
		return nil
	}
	v := &validator{prog: prog, topLevel: map[string]bool{}}
	v.collect()
	v.checkTypes()
	v.checkTxs()
	v.checkTopLevelValues()
	return v.diags
}

type validator struct {
	prog     *Program
	topLevel map[string]bool
	diags    []Diagnostic
}

func (v *validator) errorf(span Identifier, code, format string, args ...any) {
	v.diags = append(v.diags, Diagnostic{
		Span:     span.Span,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
		Code:     code,
		Source:   SourceAnalyzer,
	})
}

// collect gathers top-level names and flags duplicates across all
// declaration namespaces.
func (v *validator) collect() {
	seen := map[string]bool{}
	add := func(id Identifier) {
		if id.Name == "" {
			return
		}
		if seen[id.Name] {
			v.errorf(id, "duplicate-declaration", "duplicate declaration of %q", id.Name)
		}
		seen[id.Name] = true
		v.topLevel[id.Name] = true
	}
	for _, d := range v.prog.Parties {
		add(d.Name)
	}
	for _, d := range v.prog.Policies {
		add(d.Name)
	}
	for _, d := range v.prog.Assets {
		add(d.Name)
	}
	for _, d := range v.prog.Types {
		add(d.Name)
	}
	for _, d := range v.prog.Txs {
		add(d.Name)
	}
}

func (v *validator) typeDeclared(name string) bool {
	if builtinTypes[name] {
		return true
	}
	for _, t := range v.prog.Types {
		if t.Name.Name == name {
			return true
		}
	}
	return false
}

func (v *validator) checkTypeRef(ref *TypeRef) {
	if ref == nil || ref.Name == "" {
		return
	}
	if !v.typeDeclared(ref.Name) {
		v.errorf(Identifier{Span: ref.Span, Name: ref.Name},
			"unknown-type", "unknown type %q", ref.Name)
	}
	if ref.Elem != nil {
		v.checkTypeRef(ref.Elem)
	}
}

func (v *validator) checkTypes() {
	for _, t := range v.prog.Types {
		for _, c := range t.Cases {
			for _, f := range c.Fields {
				v.checkTypeRef(f.Type)
			}
		}
	}
}

// checkTopLevelValues resolves expressions in policy and asset
// declarations against the top-level scope only.
func (v *validator) checkTopLevelValues() {
	scope := func(name string) bool {
		return v.topLevel[name] || builtinValues[name]
	}
	for _, pol := range v.prog.Policies {
		v.checkExpr(pol.Value, scope)
		for _, f := range pol.Fields {
			v.checkExpr(f.Value, scope)
		}
	}
	for _, a := range v.prog.Assets {
		v.checkExpr(a.Policy, scope)
		v.checkExpr(a.AssetName, scope)
	}
}

func (v *validator) checkTxs() {
	for _, tx := range v.prog.Txs {
		locals := map[string]bool{}
		declare := func(id Identifier) {
			if id.Name == "" {
				return
			}
			if locals[id.Name] {
				v.errorf(id, "duplicate-declaration",
					"duplicate declaration of %q in tx %q", id.Name, tx.Name.Name)
			}
			locals[id.Name] = true
		}
		for _, param := range tx.Params {
			declare(param.Name)
			v.checkTypeRef(param.Type)
		}
		for _, blk := range tx.Blocks {
			if blk.Name != nil {
				declare(*blk.Name)
			}
		}

		scope := func(name string) bool {
			return locals[name] || v.topLevel[name] || builtinValues[name]
		}
		for _, blk := range tx.Blocks {
			for _, f := range blk.Fields {
				v.checkExpr(f.Value, scope)
			}
		}
	}
}

// checkExpr resolves identifier occurrences against scope. Property
// access checks only the root object; field paths are opaque to the
// validator because datum shapes come from on-chain data.
func (v *validator) checkExpr(e Expr, scope func(string) bool) {
	switch e := e.(type) {
	case nil:
	case *IdentExpr:
		if e.Name != "" && !scope(e.Name) {
			v.errorf(Identifier{Span: e.S, Name: e.Name},
				"unresolved-reference", "unresolved reference %q", e.Name)
		}
	case *PropertyAccess:
		v.checkExpr(e.Object, scope)
	case *ConstructorExpr:
		if e.Type != nil && e.Type.Name != "" && !v.typeDeclared(e.Type.Name) {
			v.errorf(Identifier{Span: e.Type.S, Name: e.Type.Name},
				"unknown-type", "unknown type %q", e.Type.Name)
		}
		for _, f := range e.Fields {
			v.checkExpr(f.Value, scope)
		}
		v.checkExpr(e.Spread, scope)
	case *ListExpr:
		for _, el := range e.Elems {
			v.checkExpr(el, scope)
		}
	case *BinaryExpr:
		v.checkExpr(e.Left, scope)
		v.checkExpr(e.Right, scope)
	}
}
