package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnnotationKind tags the type held by an AnnotationValue.
type AnnotationKind int

// Annotation value kinds.
const (
	AnnotationNull AnnotationKind = iota
	AnnotationString
	AnnotationInteger
	AnnotationBool
	AnnotationRaw
)

// AnnotationValue is a closed tagged value: null, string, integer, bool, or raw text.
// The kind is chosen when the document is loaded.
type AnnotationValue struct {
	Kind AnnotationKind
	Str  string
	Int  int64
	Bool bool
}

// NullAnnotation returns the null value.
func NullAnnotation() AnnotationValue { return AnnotationValue{Kind: AnnotationNull} }

// StringAnnotation returns a string value.
func StringAnnotation(s string) AnnotationValue {
	return AnnotationValue{Kind: AnnotationString, Str: s}
}

// IntAnnotation returns an integer value.
func IntAnnotation(i int64) AnnotationValue { return AnnotationValue{Kind: AnnotationInteger, Int: i} }

// BoolAnnotation returns a boolean value.
func BoolAnnotation(b bool) AnnotationValue { return AnnotationValue{Kind: AnnotationBool, Bool: b} }

// RawAnnotation returns raw text (objects, arrays, and numbers that are not integers).
func RawAnnotation(s string) AnnotationValue { return AnnotationValue{Kind: AnnotationRaw, Str: s} }

// IsNull reports whether the value is null. An empty string is treated as null
// when the annotation is applied, so it removes the annotation.
func (v AnnotationValue) IsNull() bool {
	return v.Kind == AnnotationNull || (v.Kind == AnnotationString && v.Str == "")
}

// Interface returns the value as a plain Go value.
func (v AnnotationValue) Interface() any {
	switch v.Kind {
	case AnnotationString, AnnotationRaw:
		return v.Str
	case AnnotationInteger:
		return v.Int
	case AnnotationBool:
		return v.Bool
	default:
		return nil
	}
}

func (v AnnotationValue) String() string {
	switch v.Kind {
	case AnnotationString, AnnotationRaw:
		return v.Str
	case AnnotationInteger:
		return strconv.FormatInt(v.Int, 10)
	case AnnotationBool:
		return strconv.FormatBool(v.Bool)
	default:
		return "null"
	}
}

// AnnotationFromAny classifies a decoded value. Maps, slices and non-integer numbers
// become raw text.
func AnnotationFromAny(x any) AnnotationValue {
	switch t := x.(type) {
	case nil:
		return NullAnnotation()
	case string:
		return StringAnnotation(t)
	case bool:
		return BoolAnnotation(t)
	case int:
		return IntAnnotation(int64(t))
	case int64:
		return IntAnnotation(t)
	case uint64:
		if t <= 1<<63-1 {
			return IntAnnotation(int64(t))
		}
		return RawAnnotation(strconv.FormatUint(t, 10))
	case float64:
		if t == float64(int64(t)) {
			return IntAnnotation(int64(t))
		}
		return RawAnnotation(strconv.FormatFloat(t, 'g', -1, 64))
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntAnnotation(i)
		}
		return RawAnnotation(t.String())
	default:
		raw, err := json.Marshal(normalizeForJSON(t))
		if err != nil {
			return RawAnnotation(fmt.Sprint(t))
		}
		return RawAnnotation(string(raw))
	}
}

// normalizeForJSON converts map[any]any produced by some YAML decoders into
// map[string]any so it can be encoded.
func normalizeForJSON(x any) any {
	switch t := x.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[fmt.Sprint(k)] = normalizeForJSON(v)
		}
		return m
	case map[string]any:
		for k, v := range t {
			t[k] = normalizeForJSON(v)
		}
		return t
	case []any:
		for i, v := range t {
			t[i] = normalizeForJSON(v)
		}
		return t
	default:
		return x
	}
}

// UnmarshalJSON classifies the JSON token kind.
func (v *AnnotationValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = NullAnnotation()
		return nil
	}
	switch data[0] {
	case 'n':
		*v = NullAnnotation()
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringAnnotation(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolAnnotation(b)
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*v = RawAnnotation(buf.String())
	default:
		if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			*v = IntAnnotation(i)
		} else {
			*v = RawAnnotation(string(data))
		}
	}
	return nil
}

// MarshalJSON encodes the value as its natural JSON form.
func (v AnnotationValue) MarshalJSON() ([]byte, error) {
	if v.Kind == AnnotationRaw && json.Valid([]byte(v.Str)) {
		return []byte(v.Str), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalYAML decodes through the generic YAML value form.
func (v *AnnotationValue) UnmarshalYAML(unmarshal func(any) error) error {
	var x any
	if err := unmarshal(&x); err != nil {
		return err
	}
	*v = AnnotationFromAny(x)
	return nil
}

// MarshalYAML encodes the value as its natural YAML form.
func (v AnnotationValue) MarshalYAML() (any, error) {
	if v.Kind == AnnotationRaw {
		var x any
		if err := json.Unmarshal([]byte(v.Str), &x); err == nil {
			return x, nil
		}
	}
	return v.Interface(), nil
}

// =============================================================================
// Known annotations
// =============================================================================

// KnownAnnotations is the whitelist of annotation keys that may be applied to entities.
var KnownAnnotations = []string{
	"Relational:Comment",
	"Relational:DefaultSchema",
	"Relational:IsTableExcludedFromMigrations",
	"Relational:MappingStrategy",
	"Relational:Schema",
	"Relational:TableName",
	"Relational:ViewDefinitionSql",
	"Relational:ViewName",
	"Relational:ViewSchema",
	"Relational:FunctionName",
	"Relational:SqlQuery",
	"Scaffolding:DbSetName",
	"Scaffolding:EntityTypeErrors",
	"DiscriminatorProperty",
	"DiscriminatorValue",
	"DiscriminatorMappingComplete",
	"ConstructorBinding",
	"QueryFilter",
	"DefiningQuery",
	"ChangeTrackingStrategy",
	"PropertyAccessMode",
	"NavigationAccessMode",
	"ServiceOnlyConstructorBinding",
}

var knownAnnotationIndex = func() map[string]string {
	m := make(map[string]string, len(KnownAnnotations))
	for _, k := range KnownAnnotations {
		m[strings.ToLower(k)] = k
	}
	return m
}()

// CanonicalAnnotation returns the whitelisted spelling of key, matched case-insensitively.
func CanonicalAnnotation(key string) (string, bool) {
	k, ok := knownAnnotationIndex[strings.ToLower(strings.TrimSpace(key))]
	return k, ok
}

// Annotation is a validated key/value pair carried by a MergeAnnotations decision.
type Annotation struct {
	Key   string          `json:"key"`
	Value AnnotationValue `json:"value"`
}
