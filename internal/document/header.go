package document

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const timestampTag = "!!timestamp"

// Header is the ordered key/value block at the top of a document.
// Values keep their original YAML node so an unmodified header re-encodes
// with the same values and key order.
type Header struct {
	keys   []string
	values map[string]*yaml.Node
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{values: make(map[string]*yaml.Node)}
}

func headerFromNode(n *yaml.Node) (*Header, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("header is not a mapping")
	}
	h := NewHeader()
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: header keys must be scalars", k.Line)
		}
		if _, dup := h.values[k.Value]; !dup {
			h.keys = append(h.keys, k.Value)
		}
		h.values[k.Value] = v
	}
	return h, nil
}

// Len returns the number of keys.
func (h *Header) Len() int { return len(h.keys) }

// Keys returns the keys in document order.
func (h *Header) Keys() []string {
	return append([]string(nil), h.keys...)
}

// Has reports whether key is present.
func (h *Header) Has(key string) bool {
	_, ok := h.values[key]
	return ok
}

// Get decodes the value stored under key. Timestamps come back as their
// literal text so dates survive a load/save cycle unchanged.
func (h *Header) Get(key string) (any, bool) {
	n, ok := h.values[key]
	if !ok {
		return nil, false
	}
	return decodeValue(n), true
}

func decodeValue(n *yaml.Node) any {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == timestampTag {
		return n.Value
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return n.Value
	}
	return v
}

// String returns the scalar text of key, or "" when absent or not a scalar.
func (h *Header) String(key string) string {
	n, ok := h.values[key]
	if !ok || n.Kind != yaml.ScalarNode || n.ShortTag() == "!!null" {
		return ""
	}
	return n.Value
}

// Int returns key as an integer. ok is false when absent or not numeric.
func (h *Header) Int(key string) (int, bool) {
	n, ok := h.values[key]
	if !ok || n.Kind != yaml.ScalarNode {
		return 0, false
	}
	i, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Set stores v under key, appending the key when new.
func (h *Header) Set(key string, v any) error {
	n, err := encodeValue(v)
	if err != nil {
		return fmt.Errorf("header %s: %w", key, err)
	}
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = n
	return nil
}

// SetDate stores t as a plain YYYY-MM-DD value.
func (h *Header) SetDate(key string, t time.Time) {
	_ = h.Set(key, t.Format(time.DateOnly))
}

func encodeValue(v any) (*yaml.Node, error) {
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	// yaml.v3 quotes strings that would read back as timestamps; dates are
	// written bare so hand-edited and generated headers look the same.
	if s, ok := v.(string); ok && n.Kind == yaml.ScalarNode && n.Style != 0 {
		if _, err := time.Parse(time.DateOnly, s); err == nil {
			n.Tag = timestampTag
			n.Style = 0
		}
	}
	return n, nil
}

// Map returns a plain map of decoded values, for JSON responses.
func (h *Header) Map() map[string]any {
	out := make(map[string]any, len(h.keys))
	for _, k := range h.keys {
		out[k] = decodeValue(h.values[k])
	}
	return out
}

func (h *Header) node() *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range h.keys {
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			h.values[k],
		)
	}
	return m
}
