// Package fingerprint computes a reproducible-build identity for a
// type-checked Seq module: a canonical, position-independent encoding
// of every word's name and inferred effect plus every union's shape,
// CBOR-encoded deterministically and SHA-256 hashed.
//
// The two-pass canonicalize-then-hash shape (build a placeholder-free
// intermediate form, then hash *that* rather than the raw AST) mirrors
// the teacher's plan-hash computation, adapted here from execution-tree
// canonicalization to stack-effect canonicalization: two builds of the
// same source produce the same fingerprint regardless of source
// formatting, since only semantic content (names, effects, variant
// shapes) survives into the canonical form.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/seq-lang/seq/internal/ast"
	"github.com/seq-lang/seq/internal/unionelab"
)

// Version is bumped whenever the canonical encoding's shape changes,
// so fingerprints computed by different seqc versions are never
// mistaken for one another.
const Version = 1

// canonicalModule is the intermediate, placeholder-free form that gets
// CBOR-encoded and hashed. Field order is fixed by struct declaration
// order, and the word and union lists are sorted by name (variants,
// fields and effect types keep declaration order), so two semantically
// identical modules always canonicalize byte-for-byte identically.
type canonicalModule struct {
	Version uint8
	Words   []canonicalWord
	Unions  []canonicalUnion
}

type canonicalWord struct {
	Name   string
	Effect canonicalEffect
}

type canonicalEffect struct {
	Inputs   []string
	Outputs  []string
	SameRow  bool
}

type canonicalUnion struct {
	Name     string
	Variants []canonicalVariant
}

type canonicalVariant struct {
	Tag    string
	Fields []canonicalField
}

type canonicalField struct {
	Name string
	Type string
}

// Build canonicalizes a flattened, type-checked, elaborated module:
// every WordDef must already carry a non-nil InferredEffect (i.e. this
// runs after internal/types.Check succeeds).
func Build(items []ast.Item, unions *unionelab.Table) (*canonicalModule, error) {
	cm := &canonicalModule{Version: Version}

	for _, item := range items {
		wd, ok := item.(*ast.WordDef)
		if !ok {
			continue
		}
		if wd.InferredEffect == nil {
			return nil, fmt.Errorf("fingerprint: word %q has no inferred effect (run type checking first)", wd.Name)
		}
		cm.Words = append(cm.Words, canonicalWord{Name: wd.Name, Effect: canonicalizeEffect(wd.InferredEffect)})
	}
	sort.Slice(cm.Words, func(i, j int) bool { return cm.Words[i].Name < cm.Words[j].Name })

	for _, name := range sortedUnionNames(unions) {
		info := unions.Unions[name]
		cu := canonicalUnion{Name: name}
		for _, v := range info.Decl.Variants {
			cv := canonicalVariant{Tag: v.Tag}
			for _, f := range v.Fields {
				cv.Fields = append(cv.Fields, canonicalField{Name: f.Name, Type: describeType(f.Type)})
			}
			cu.Variants = append(cu.Variants, cv)
		}
		cm.Unions = append(cm.Unions, cu)
	}

	return cm, nil
}

func sortedUnionNames(unions *unionelab.Table) []string {
	names := make([]string, 0, len(unions.Unions))
	for n := range unions.Unions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func canonicalizeEffect(e *ast.Effect) canonicalEffect {
	ce := canonicalEffect{SameRow: e.SameRow()}
	for _, t := range e.Inputs {
		ce.Inputs = append(ce.Inputs, describeType(t))
	}
	for _, t := range e.Outputs {
		ce.Outputs = append(ce.Outputs, describeType(t))
	}
	return ce
}

// describeType renders a Type canonically. Type variables are rendered
// by kind alone ("var"), not by their (run-specific, allocation-order-
// dependent) numeric id, so two inference runs over identical source
// produce identical fingerprints even though their internal variable
// counters need not line up.
func describeType(t ast.Type) string {
	switch t.Kind {
	case ast.TInt:
		return "Int"
	case ast.TFloat:
		return "Float"
	case ast.TString:
		return "String"
	case ast.TBool:
		return "Bool"
	case ast.TSymbol:
		return "Symbol"
	case ast.TChannel:
		return "Channel"
	case ast.TUnion:
		return "Union:" + t.Name
	case ast.TQuotation:
		if t.Effect == nil {
			return "Quotation"
		}
		ce := canonicalizeEffect(t.Effect)
		return fmt.Sprintf("Quotation(%v -> %v)", ce.Inputs, ce.Outputs)
	case ast.TVar:
		return "var"
	default:
		return "?"
	}
}

// Hash CBOR-encodes the canonical module in deterministic (map-keys-
// sorted, shortest-form) mode and returns its SHA-256 as a hex string.
func Hash(items []ast.Item, unions *unionelab.Table) (string, error) {
	cm, err := Build(items, unions)
	if err != nil {
		return "", err
	}
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return "", fmt.Errorf("fingerprint: building canonical CBOR encoder: %w", err)
	}
	data, err := encMode.Marshal(cm)
	if err != nil {
		return "", fmt.Errorf("fingerprint: encoding canonical module: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
