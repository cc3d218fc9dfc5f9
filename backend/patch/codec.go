package patch

import (
	"bytes"
	"reflect"

	"lww-crdt/backend/types"

	"github.com/goccy/go-json"
	"golang.org/x/xerrors"
)

// ErrDecode is returned when a document does not match the target type.
var ErrDecode = xerrors.New("document does not decode into target type")

// JSONCodec maps values of type T to and from JSON documents. Unknown fields
// are rejected so that a document of another shape does not silently decode.
//
// - implements crdt.Codec[T]
type JSONCodec[T any] struct{}

// NewJSONCodec returns a codec for T.
func NewJSONCodec[T any]() JSONCodec[T] {
	return JSONCodec[T]{}
}

// Encode serializes v into a document.
func (JSONCodec[T]) Encode(v T) (types.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode %T: %w", v, err)
	}
	return types.Document(raw), nil
}

// Decode deserializes doc into a T.
func (JSONCodec[T]) Decode(doc types.Document) (T, error) {
	var v T
	if doc == nil {
		return v, xerrors.Errorf("absent document: %w", ErrDecode)
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var zero T
		return zero, xerrors.Errorf("%v: %w", err, ErrDecode)
	}
	return v, nil
}

// TypeName returns the name of T, used to compare managers.
func (JSONCodec[T]) TypeName() string {
	return reflect.TypeFor[T]().String()
}
