package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LoadDraft decodes a previously saved draft document.
func LoadDraft(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("load draft: %w", ErrFormat)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("load draft: %w: %v", ErrDecode, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("load draft: %w: not a list of sections", ErrDecode)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("load draft: %w: %v", ErrDecode, err)
	}

	return doc, nil
}

// EncodeDraft serializes a document in the draft format read by LoadDraft.
func EncodeDraft(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	return buf.Bytes(), nil
}
