// Package trait defines the closed catalog of characteristic kinds and
// the typed field schema each kind carries.
//
// The catalog is resolved at compile time: every kind is a declared
// constant with a field inventory compiled into a JSON schema during
// package init. There is no runtime name-to-type registry, so an
// unknown kind can only come from external input and is always a
// detectable ErrUnknownKind.
package trait

import (
	"errors"
	"fmt"
)

// Sentinel errors for catalog lookups and payload validation.
var (
	// ErrUnknownKind indicates a characteristic kind outside the catalog.
	ErrUnknownKind = errors.New("unknown characteristic kind")

	// ErrInvalidFields indicates a field payload that does not satisfy
	// the kind's schema (wrong type, out-of-range value, foreign field).
	ErrInvalidFields = errors.New("invalid characteristic fields")
)

// Kind identifies one characteristic category.
type Kind string

// The full catalog. Field inventories live in catalog.go.
const (
	KindSocial       Kind = "social"
	KindCognitive    Kind = "cognitive"
	KindEmotional    Kind = "emotional"
	KindBehavioral   Kind = "behavioral"
	KindHumor        Kind = "humor"
	KindDarkTriad    Kind = "dark_triad"
	KindHexaco       Kind = "hexaco"
	KindClinical     Kind = "clinical"
	KindLoveLanguage Kind = "love_language"
	KindRelationship Kind = "relationship"
)

// kinds lists every catalog member in stable order.
var kinds = []Kind{
	KindSocial,
	KindCognitive,
	KindEmotional,
	KindBehavioral,
	KindHumor,
	KindDarkTriad,
	KindHexaco,
	KindClinical,
	KindLoveLanguage,
	KindRelationship,
}

// Kinds returns all catalog kinds in stable order.
// The returned slice is a copy.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Valid reports whether k is a catalog member.
func (k Kind) Valid() bool {
	_, ok := catalog[k]
	return ok
}

// String returns the kind's wire name.
func (k Kind) String() string { return string(k) }

// ParseKind converts external input into a catalog Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// FieldType is the value type of a characteristic field.
type FieldType int

const (
	// FieldFloat is a nullable numeric trait scored in [0, 1].
	FieldFloat FieldType = iota
	// FieldString is a nullable free-form label (e.g. a dominant style).
	FieldString
)

// FieldSpec describes one field of a kind's schema.
type FieldSpec struct {
	Name string
	Type FieldType
	Desc string
}

// Fields returns the field specs for the given kind, or ErrUnknownKind.
// The returned slice is a copy.
func Fields(k Kind) ([]FieldSpec, error) {
	specs, ok := catalog[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	out := make([]FieldSpec, len(specs))
	copy(out, specs)
	return out, nil
}
