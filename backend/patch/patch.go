// Package patch provides the structural diff and apply capability the CRDT
// is built on. Documents are JSON trees and diffs are RFC 6902 JSON Patches.
package patch

import (
	"lww-crdt/backend/types"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/goccy/go-json"
	"github.com/wI2L/jsondiff"
	"golang.org/x/xerrors"
)

// nullDocument stands for the absent document in a diff.
var nullDocument = []byte("null")

// EmptyPatch is the patch that changes nothing.
var EmptyPatch = []byte("[]")

// JSONPatch diffs and patches JSON documents.
//
// - implements types.Patcher
type JSONPatch struct {
	opts *jsonpatch.ApplyOptions
}

// New returns a JSONPatch with strict apply options: removing or replacing a
// missing path fails.
func New() *JSONPatch {
	opts := jsonpatch.NewApplyOptions()
	opts.AllowMissingPathOnRemove = false
	opts.EnsurePathExistsOnAdd = false

	return &JSONPatch{opts: opts}
}

// Apply implements types.Patcher.
func (p *JSONPatch) Apply(doc types.Document, raw []byte) (types.Document, error) {
	if doc == nil {
		return nil, types.ErrAbsentDocument
	}

	patch, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode patch: %w", err)
	}

	res, err := patch.ApplyWithOptions(doc, p.opts)
	if err != nil {
		return nil, xerrors.Errorf("failed to apply patch: %w", err)
	}
	return types.Document(res), nil
}

// Diff returns the patch turning before into after, or nil when they are
// structurally equal. An absent document diffs as JSON null.
func (p *JSONPatch) Diff(before, after types.Document) ([]byte, error) {
	src, dst := []byte(before), []byte(after)
	if before == nil {
		src = nullDocument
	}
	if after == nil {
		dst = nullDocument
	}

	patch, err := jsondiff.CompareJSON(src, dst)
	if err != nil {
		return nil, xerrors.Errorf("failed to diff documents: %w", err)
	}
	if len(patch) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal patch: %w", err)
	}
	return raw, nil
}

// Equal tells if two documents are structurally equal, ignoring key order and
// whitespace.
func Equal(a, b types.Document) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return jsonpatch.Equal(a, b)
}
