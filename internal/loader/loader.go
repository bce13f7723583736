// Package loader reads and writes rule documents and catalog snapshots. The format
// is chosen by file extension: YAML for .yaml and .yml, JSON for .json. Decoding is
// strict; unknown fields are parse errors.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/ruler/pkg/core"
)

// Format is a document encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor returns the format implied by a file extension.
func FormatFor(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", &UnsupportedFormatError{Path: path, Ext: ext}
	}
}

func read(path string) ([]byte, Format, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator input
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, format, nil
}

// decode strictly decodes data into v.
func decode(data []byte, format Format, v any) error {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err := dec.Decode(v)
		if errors.Is(err, io.EOF) {
			// an empty file decodes to the zero value
			return nil
		}
		return err
	}
}

// LoadRules loads a full rule document.
func LoadRules(path string) (*core.RuleDocument, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(data, format, path)
}

// ParseRules decodes a full rule document. file is used in error messages only.
func ParseRules(data []byte, format Format, file string) (*core.RuleDocument, error) {
	var doc core.RuleDocument
	if err := decode(data, format, &doc); err != nil {
		return nil, &ParseError{File: file, Message: fmt.Sprintf("invalid rule document: %v", err)}
	}
	return &doc, nil
}

// LoadNamingRules loads a rename-only naming document.
func LoadNamingRules(path string) (*core.NamingDocument, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	return ParseNamingRules(data, format, path)
}

// ParseNamingRules decodes a naming document.
func ParseNamingRules(data []byte, format Format, file string) (*core.NamingDocument, error) {
	var doc core.NamingDocument
	if err := decode(data, format, &doc); err != nil {
		return nil, &ParseError{File: file, Message: fmt.Sprintf("invalid naming document: %v", err)}
	}
	return &doc, nil
}

// LoadRuleDocument loads either document variant. A naming document, recognized by
// schemas listing tables instead of entities, is converted to a rule document that
// includes everything it does not rename.
func LoadRuleDocument(path string) (*core.RuleDocument, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	naming, err := isNamingDocument(data, format)
	if err != nil {
		return nil, &ParseError{File: path, Message: fmt.Sprintf("invalid document: %v", err)}
	}
	if naming {
		doc, err := ParseNamingRules(data, format, path)
		if err != nil {
			return nil, err
		}
		return doc.ToRuleDocument(), nil
	}
	return ParseRules(data, format, path)
}

func isNamingDocument(data []byte, format Format) (bool, error) {
	var probe struct {
		Schemas []map[string]any `yaml:"schemas" json:"schemas"`
	}
	var err error
	if format == FormatJSON {
		err = json.Unmarshal(data, &probe)
	} else {
		err = yaml.Unmarshal(data, &probe)
	}
	if err != nil {
		return false, err
	}

	tables := false
	for _, s := range probe.Schemas {
		if _, ok := s["entities"]; ok {
			return false, nil
		}
		if _, ok := s["tables"]; ok {
			tables = true
		}
	}
	return tables, nil
}

// SaveRules writes a rule document in the format implied by path.
func SaveRules(path string, doc *core.RuleDocument) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := EncodeRules(doc, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// EncodeRules encodes a rule document.
func EncodeRules(doc *core.RuleDocument, format Format) ([]byte, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode rules: %w", err)
		}
		return append(data, '\n'), nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadCatalog loads a catalog snapshot. Tables without a schema take their
// parent schema's name.
func LoadCatalog(path string) (*core.Catalog, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data, format, path)
}

// ParseCatalog decodes a catalog snapshot.
func ParseCatalog(data []byte, format Format, file string) (*core.Catalog, error) {
	var cat core.Catalog
	if err := decode(data, format, &cat); err != nil {
		return nil, &ParseError{File: file, Message: fmt.Sprintf("invalid catalog: %v", err)}
	}
	cat.Normalize()
	return &cat, nil
}
