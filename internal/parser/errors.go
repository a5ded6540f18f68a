package parser

import "errors"

var (
	// ErrFormat is returned when the input is empty or cannot be split into lines.
	ErrFormat = errors.New("invalid script format")
	// ErrMalformedStructure is returned when content appears before any section marker.
	ErrMalformedStructure = errors.New("content outside of a section")
	// ErrDecode is returned when a draft is not a valid document.
	ErrDecode = errors.New("invalid draft document")
)
