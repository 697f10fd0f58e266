package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

const contactsSchema = `{"type":"SCHEMA","stream":"Contacts","key_properties":["email"],"schema":{"type":"object","properties":{"email":{"type":"string"},"first_name":{"type":"string"}},"required":["email"]}}`

func TestReaderSchemaThenRecord(t *testing.T) {
	input := contactsSchema + "\n" +
		`{"type":"RECORD","stream":"Contacts","record":{"email":"ada@example.org","first_name":"Ada"}}` + "\n" +
		`{"type":"STATE","value":{"bookmarks":{"Contacts":{"cursor":"abc"}}}}` + "\n"

	r := NewReader(strings.NewReader(input))

	msg, err := r.Next()
	if err != nil || msg.Type != TypeSchema {
		t.Fatalf("first message = %+v, %v", msg, err)
	}
	msg, err = r.Next()
	if err != nil || msg.Type != TypeRecord {
		t.Fatalf("second message = %+v, %v", msg, err)
	}
	msg, err = r.Next()
	if err != nil || msg.Type != TypeState {
		t.Fatalf("third message = %+v, %v", msg, err)
	}
	if string(msg.Value) == "" {
		t.Fatal("state value missing")
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReaderRejectsRecordFailingSchema(t *testing.T) {
	input := contactsSchema + "\n" +
		`{"type":"RECORD","stream":"Contacts","record":{"first_name":"Ada"}}` + "\n"

	r := NewReader(strings.NewReader(input))
	if _, err := r.Next(); err != nil {
		t.Fatalf("schema message error = %v", err)
	}
	if _, err := r.Next(); err == nil {
		t.Fatal("record without required email must fail validation")
	}
}

func TestReaderAllowsRecordWithoutDeclaredSchema(t *testing.T) {
	input := `{"type":"RECORD","stream":"Other","record":{"anything":"goes"}}` + "\n"
	r := NewReader(strings.NewReader(input))
	msg, err := r.Next()
	if err != nil || msg.Type != TypeRecord {
		t.Fatalf("message = %+v, %v", msg, err)
	}
}

func TestReaderSkipsBlankLinesAndRejectsUnknownTypes(t *testing.T) {
	input := "\n\n" + `{"type":"NOISE"}` + "\n"
	r := NewReader(strings.NewReader(input))
	if _, err := r.Next(); err == nil {
		t.Fatal("unknown message type must be rejected")
	}
}

func TestReaderRejectsStateWithoutValue(t *testing.T) {
	r := NewReader(strings.NewReader(`{"type":"STATE"}` + "\n"))
	if _, err := r.Next(); err == nil {
		t.Fatal("state without value must be rejected")
	}
}
