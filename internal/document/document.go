// Package document reads and writes Markdown files that carry a YAML front
// matter header, and edits their "## " sections.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/storage"
)

const delim = "---"

// Document is a parsed file: header block plus free-form body.
type Document struct {
	Header *Header
	Body   string
}

// New returns a document with an empty header.
func New(body string) *Document {
	return &Document{Header: NewHeader(), Body: body}
}

// Parse splits raw bytes into header and body. Content without a leading
// "---" line has an empty header. An unterminated or invalid header block
// fails with apperr.ErrParse.
func Parse(data []byte) (*Document, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	trimmed := strings.TrimLeft(text, "\r\n")

	first, rest, _ := strings.Cut(trimmed, "\n")
	if strings.TrimRight(first, " \t\r") != delim {
		return New(text), nil
	}

	var block []string
	closed := false
	for rest != "" {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		if strings.TrimRight(line, " \t\r") == delim {
			closed = true
			break
		}
		block = append(block, line)
	}
	if !closed {
		return nil, fmt.Errorf("document: unterminated header: %w", apperr.ErrParse)
	}

	h := NewHeader()
	raw := strings.Join(block, "\n")
	if strings.TrimSpace(raw) != "" {
		var root yaml.Node
		if err := yaml.Unmarshal([]byte(raw), &root); err != nil {
			return nil, fmt.Errorf("document: header: %v: %w", err, apperr.ErrParse)
		}
		if len(root.Content) == 0 {
			return nil, fmt.Errorf("document: empty header document: %w", apperr.ErrParse)
		}
		parsed, err := headerFromNode(root.Content[0])
		if err != nil {
			return nil, fmt.Errorf("document: %v: %w", err, apperr.ErrParse)
		}
		h = parsed
	}

	return &Document{Header: h, Body: strings.TrimLeft(rest, "\r\n")}, nil
}

// Marshal renders the document: header block, blank line, body.
// A document with an empty header renders as its body alone.
func (d *Document) Marshal() ([]byte, error) {
	if d.Header == nil || d.Header.Len() == 0 {
		return []byte(d.Body), nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.Header.node()); err != nil {
		return nil, fmt.Errorf("document: encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("document: encode header: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(delim + "\n")
	out.Write(buf.Bytes())
	out.WriteString(delim + "\n\n")
	out.WriteString(d.Body)
	return out.Bytes(), nil
}

// Load reads and parses path through p. A missing file fails with
// apperr.ErrNotFound.
func Load(p storage.Provider, path string) (*Document, error) {
	data, err := p.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("document: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Save writes d to path, replacing any existing file.
func Save(p storage.Provider, path string, d *Document) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return p.Write(path, data)
}
