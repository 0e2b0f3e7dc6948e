package resolve

import (
	"os"
	"path/filepath"

	"github.com/seq-lang/seq/internal/ast"
	"github.com/seq-lang/seq/internal/parser"
)

// FSLoader resolves module references against the filesystem:
// std: names are searched under StdlibPath, ffi: names under FFIPath,
// bare names relative to the including file's directory.
type FSLoader struct {
	StdlibPath string
	FFIPath    string
	cache      map[string]*ast.Module
}

// NewFSLoader constructs an FSLoader rooted at the given stdlib and
// FFI manifest search paths.
func NewFSLoader(stdlibPath, ffiPath string) *FSLoader {
	return &FSLoader{StdlibPath: stdlibPath, FFIPath: ffiPath, cache: map[string]*ast.Module{}}
}

func (l *FSLoader) Load(ref Ref, fromPath string) (string, *ast.Module, error) {
	var path string
	switch ref.Kind {
	case RefStd:
		path = filepath.Join(l.StdlibPath, ref.Name+".seq")
	case RefFFI:
		path = filepath.Join(l.FFIPath, ref.Name+".seq")
	default:
		path = filepath.Join(filepath.Dir(fromPath), ref.Name+".seq")
	}
	path = filepath.Clean(path)

	if mod, ok := l.cache[path]; ok {
		return path, mod, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return "", nil, &ErrNotFound{Ref: ref}
	}

	mod, bag := parser.Parse(path, string(src))
	if bag.HasErrors() {
		return "", nil, &parseFailure{path: path, detail: bag.FormatAll()}
	}

	l.cache[path] = mod
	return path, mod, nil
}

type parseFailure struct {
	path   string
	detail string
}

func (e *parseFailure) Error() string {
	return "parse errors in " + e.path + ":\n" + e.detail
}

// MapLoader resolves references against an in-memory table keyed by
// the raw reference body (kind prefix + name, no version), used in
// tests and for embedding a precompiled stdlib image.
type MapLoader map[string]*ast.Module

func (l MapLoader) Load(ref Ref, fromPath string) (string, *ast.Module, error) {
	key := ref.Kind.String() + ":" + ref.Name
	mod, ok := l[key]
	if !ok {
		return "", nil, &ErrNotFound{Ref: ref}
	}
	return key, mod, nil
}
