package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Payload is an insertion-ordered map of report key to raw JSON content.
// The zero value is an empty payload ready to use.
type Payload struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{values: make(map[string]json.RawMessage)}
}

// ParsePayload decodes a JSON object keeping the key order of the document.
func ParsePayload(data []byte) (*Payload, error) {
	p := NewPayload()
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}

// Set stores value under key. A new key is appended to the order; an
// existing key keeps its position.
func (p *Payload) Set(key string, value json.RawMessage) {
	if p.values == nil {
		p.values = make(map[string]json.RawMessage)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(json.RawMessage(nil), value...)
}

// SetText stores s as a JSON string.
func (p *Payload) SetText(key, s string) {
	b, _ := json.Marshal(s)
	p.Set(key, b)
}

func (p *Payload) Get(key string) (json.RawMessage, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

func (p *Payload) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Keys returns the keys in first-seen order.
func (p *Payload) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns a deep copy.
func (p *Payload) Clone() *Payload {
	out := NewPayload()
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out.Set(k, p.values[k])
	}
	return out
}

// MarshalJSON encodes the payload as an object in key order.
func (p *Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if p != nil {
		for i, k := range p.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			v := p.values[k]
			if len(v) == 0 {
				v = json.RawMessage("null")
			}
			buf.Write(v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the payload with the members of a JSON object.
func (p *Payload) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("payload: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return fmt.Errorf("payload: expected object, got %s", root.Type)
	}
	p.keys = nil
	p.values = make(map[string]json.RawMessage)
	root.ForEach(func(key, value gjson.Result) bool {
		p.Set(key.String(), json.RawMessage(value.Raw))
		return true
	})
	return nil
}
