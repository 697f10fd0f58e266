// Package stream reads newline-delimited ingestion messages (SCHEMA,
// RECORD, STATE) and validates record payloads against the active schema
// before they reach the sink.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

type MessageType string

const (
	TypeSchema MessageType = "SCHEMA"
	TypeRecord MessageType = "RECORD"
	TypeState  MessageType = "STATE"
)

type Message struct {
	Type          MessageType     `json:"type"`
	Stream        string          `json:"stream,omitempty"`
	Schema        json.RawMessage `json:"schema,omitempty"`
	KeyProperties []string        `json:"key_properties,omitempty"`
	Record        json.RawMessage `json:"record,omitempty"`
	Value         json.RawMessage `json:"value,omitempty"`
}

// Reader scans one message per line and tracks the compiled schema of
// each stream seen so far.
type Reader struct {
	scanner *bufio.Scanner
	schemas map[string]*jsonschema.Schema
	line    int
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	// Records can be large; the default 64K line cap is too small.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{
		scanner: scanner,
		schemas: map[string]*jsonschema.Schema{},
	}
}

// Next returns the next message, skipping blank lines. SCHEMA messages
// are compiled and remembered; RECORD messages are validated against
// their stream's schema when one has been declared. io.EOF signals a
// clean end of input.
func (r *Reader) Next() (Message, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			return Message{}, fmt.Errorf("line %d: decode message: %w", r.line, err)
		}
		switch msg.Type {
		case TypeSchema:
			if err := r.registerSchema(msg); err != nil {
				return Message{}, fmt.Errorf("line %d: %w", r.line, err)
			}
		case TypeRecord:
			if err := r.validateRecord(msg); err != nil {
				return Message{}, fmt.Errorf("line %d: %w", r.line, err)
			}
		case TypeState:
			if len(msg.Value) == 0 {
				return Message{}, fmt.Errorf("line %d: state message without value", r.line)
			}
		default:
			return Message{}, fmt.Errorf("line %d: unknown message type %q", r.line, msg.Type)
		}
		return msg, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Message{}, err
	}
	return Message{}, io.EOF
}

func (r *Reader) registerSchema(msg Message) error {
	stream := strings.TrimSpace(msg.Stream)
	if stream == "" {
		return fmt.Errorf("schema message without stream")
	}
	if len(msg.Schema) == 0 {
		return fmt.Errorf("schema message without schema body")
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(msg.Schema))
	if err != nil {
		return fmt.Errorf("parse schema for stream %q: %w", stream, err)
	}
	// One compiler per schema message; stream names are not
	// URL-safe, so the resource name is fixed.
	compiler := jsonschema.NewCompiler()
	const resource = "stream.schema.json"
	if err := compiler.AddResource(resource, doc); err != nil {
		return fmt.Errorf("register schema for stream %q: %w", stream, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("compile schema for stream %q: %w", stream, err)
	}
	r.schemas[stream] = compiled
	return nil
}

func (r *Reader) validateRecord(msg Message) error {
	stream := strings.TrimSpace(msg.Stream)
	if stream == "" {
		return fmt.Errorf("record message without stream")
	}
	if len(msg.Record) == 0 {
		return fmt.Errorf("record message without record body")
	}
	schema, ok := r.schemas[stream]
	if !ok {
		// Streams may arrive without a declared schema; the sink's own
		// preconditions still apply.
		return nil
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(msg.Record))
	if err != nil {
		return fmt.Errorf("parse record: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("record failed schema validation for stream %q: %w", stream, err)
	}
	return nil
}
