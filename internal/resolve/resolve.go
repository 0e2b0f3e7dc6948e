// Package resolve flattens a Seq module's transitive "include" graph
// into a single ordered list of declarations, detecting cycles and
// validating std:/ffi: module references along the way.
//
// The graph walk is a straightforward DFS over a recursion-stack set
// (a cycle is any edge back into a path node currently being visited),
// the same cycle-breaking shape used elsewhere in this codebase for
// dependency-graph walks, generalized here from scope resolution to
// include-graph flattening.
package resolve

import (
	"fmt"

	"github.com/seq-lang/seq/internal/ast"
	"github.com/seq-lang/seq/internal/diagnostics"
	"github.com/seq-lang/seq/internal/invariant"
)

// Loader locates and parses the module a Ref points to. fromPath is
// the path of the file containing the include, used to resolve
// relative references.
type Loader interface {
	Load(ref Ref, fromPath string) (path string, mod *ast.Module, err error)
}

// Resolved is the flattened result: every Include item has been
// replaced in place by the (recursively flattened) items of the
// module it named.
type Resolved struct {
	Path  string
	Items []ast.Item
}

type resolver struct {
	loader   Loader
	bag      diagnostics.Bag
	visiting map[string]bool // recursion-stack membership: cycle iff we re-enter one of these
	merged   map[string]bool // files already flattened in full; re-including them is a no-op
}

// Resolve flattens root's include graph starting from its already
// parsed AST (parsing root itself is the caller's job, since it may
// come from a buffer rather than the filesystem).
func Resolve(rootPath string, root *ast.Module, loader Loader) (*Resolved, *diagnostics.Bag) {
	invariant.NotNil(root, "resolve.Resolve: root module")
	invariant.NotNil(loader, "resolve.Resolve: loader")

	r := &resolver{
		loader:   loader,
		visiting: map[string]bool{rootPath: true},
		merged:   map[string]bool{},
	}
	items := r.flatten(rootPath, root)
	r.merged[rootPath] = true
	return &Resolved{Path: rootPath, Items: items}, &r.bag
}

func (r *resolver) flatten(path string, mod *ast.Module) []ast.Item {
	var out []ast.Item
	for _, item := range mod.Items {
		inc, ok := item.(*ast.Include)
		if !ok {
			out = append(out, item)
			continue
		}
		out = append(out, r.resolveInclude(path, inc)...)
	}
	return out
}

func (r *resolver) resolveInclude(fromPath string, inc *ast.Include) []ast.Item {
	ref := ParseRef(inc.Ref)
	if !ref.VersionValid() {
		r.bag.Addf(diagnostics.UnresolvedModule, inc.Position,
			"include %q: malformed version pin %q", inc.Ref, ref.Version)
		return nil
	}

	depPath, depMod, err := r.loader.Load(ref, fromPath)
	if err != nil {
		r.bag.Addf(diagnostics.UnresolvedModule, inc.Position, "include %q: %v", inc.Ref, err)
		return nil
	}

	if r.merged[depPath] {
		// Diamond include: already flattened once, declarations already
		// present in output. Including it again is a no-op, not a
		// duplicate-declaration error.
		return nil
	}
	if r.visiting[depPath] {
		r.bag.Addf(diagnostics.CircularInclude, inc.Position,
			"circular include: %q is already being resolved (via %q)", depPath, fromPath)
		return nil
	}

	r.visiting[depPath] = true
	items := r.flatten(depPath, depMod)
	delete(r.visiting, depPath)
	r.merged[depPath] = true

	return items
}

// ErrNotFound is returned by a Loader when no file satisfies a
// reference under its search convention.
type ErrNotFound struct {
	Ref Ref
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("no module found for %s reference %q", e.Ref.Kind, e.Ref.Name)
}
