package loader

import "fmt"

// UnsupportedFormatError is returned for a file whose extension is not a known
// document format.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q for %s\nHint: use a .yaml, .yml or .json file", e.Ext, e.Path)
}

// ParseError represents a document that could not be decoded.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}
