// Package filter evaluates user supplied post filters such as
//
//	likes > 100 && !is_video
//
// Expressions may only use the fields of Env, literals and operators.
// Function calls, member access and closures are rejected when the filter is
// compiled, so a bad filter fails before any request is made.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/instagram"
)

// Env is the field map a filter sees for one post
type Env struct {
	Likes     int64  `expr:"likes"`
	Comments  int64  `expr:"comments"`
	IsVideo   bool   `expr:"is_video"`
	Typename  string `expr:"typename"`
	TakenAt   int64  `expr:"taken_at"`
	Caption   string `expr:"caption"`
	Shortcode string `expr:"shortcode"`
	Owner     string `expr:"owner"`
}

var fields = map[string]struct{}{
	"likes":     {},
	"comments":  {},
	"is_video":  {},
	"typename":  {},
	"taken_at":  {},
	"caption":   {},
	"shortcode": {},
	"owner":     {},
}

// Fields lists the names a filter may reference
func Fields() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvFor builds the field map of p. taken_at is in unix seconds.
func EnvFor(p *instagram.Post) Env {
	return Env{
		Likes:     p.Likes(),
		Comments:  p.Comments(),
		IsVideo:   p.IsVideo(),
		Typename:  p.Typename(),
		TakenAt:   p.TakenAt().Unix(),
		Caption:   p.Caption(),
		Shortcode: p.Shortcode(),
		Owner:     p.OwnerUsername(),
	}
}

// Filter is a compiled post filter. A nil *Filter matches every post.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile checks source against the allowed grammar and compiles it. An empty
// source yields a nil filter.
func Compile(source string) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}

	tree, err := parser.Parse(source)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidArgument, err, "invalid filter %q", source)
	}
	v := &restrictor{}
	ast.Walk(&tree.Node, v)
	if v.err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidArgument, v.err, "invalid filter %q", source)
	}

	program, err := expr.Compile(source,
		expr.Env(Env{}),
		expr.AsBool(),
		expr.DisableAllBuiltins(),
	)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidArgument, err, "invalid filter %q", source)
	}
	return &Filter{source: source, program: program}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match reports whether p passes the filter
func (f *Filter) Match(p *instagram.Post) (bool, error) {
	if f == nil {
		return true, nil
	}
	return f.Eval(EnvFor(p))
}

// Eval runs the filter against a prepared field map
func (f *Filter) Eval(env Env) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", f.source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T", f.source, out)
	}
	return b, nil
}

// restrictor records the first disallowed node of a filter
type restrictor struct {
	err error
}

func (r *restrictor) Visit(node *ast.Node) {
	if r.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if _, ok := fields[n.Value]; !ok {
			r.err = fmt.Errorf("unknown field %q, expected one of %s", n.Value, strings.Join(Fields(), ", "))
		}
	case *ast.CallNode:
		r.err = fmt.Errorf("function calls are not allowed")
	case *ast.BuiltinNode:
		r.err = fmt.Errorf("builtin %q is not allowed", n.Name)
	case *ast.MemberNode:
		r.err = fmt.Errorf("member access is not allowed")
	case *ast.PredicateNode, *ast.PointerNode:
		r.err = fmt.Errorf("closures are not allowed")
	case *ast.VariableDeclaratorNode:
		r.err = fmt.Errorf("variable declarations are not allowed")
	}
}
