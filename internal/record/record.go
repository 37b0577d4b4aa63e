// Package record defines the password record variants stored in a vault
// and their tagged JSON encoding.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the integer discriminant carried by every serialized record.
type Type int

// Record type tags. The numbering is part of the stored format.
const (
	TypeGeneric     Type = 0
	TypeWiFi        Type = 1
	TypeBankCard    Type = 2
	TypeBankAccount Type = 3
	TypeAccount     Type = 4
)

var (
	// ErrMissingTypeTag is returned when a record has no "type" field.
	ErrMissingTypeTag = errors.New("record has no type information")

	// ErrUnknownTypeTag is returned when the "type" field names no known variant.
	ErrUnknownTypeTag = errors.New("unknown record type")

	// ErrMalformedRecord is returned when a record is not a JSON object, or a
	// required attribute is missing or has the wrong shape.
	ErrMalformedRecord = errors.New("malformed record")
)

func (t Type) String() string {
	switch t {
	case TypeGeneric:
		return "generic"
	case TypeWiFi:
		return "wifi"
	case TypeBankCard:
		return "bank_card"
	case TypeBankAccount:
		return "bank_account"
	case TypeAccount:
		return "account"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType maps a variant name, as printed by Type.String, to its tag.
func ParseType(name string) (Type, error) {
	for _, t := range []Type{TypeGeneric, TypeWiFi, TypeBankCard, TypeBankAccount, TypeAccount} {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTypeTag, name)
}

// Record is one stored secret. The set of implementations is closed:
// *Generic, *WiFi, *BankCard, *BankAccount and *Account.
type Record interface {
	// RecordType returns the variant discriminant.
	RecordType() Type
	// RecordKey returns the key identifying the record within its owner.
	RecordKey() string

	base() *Common
	validate() error
}

// Common holds the attributes shared by every variant.
type Common struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName,omitempty"`
	// Custom is caller-defined JSON, stored in compact form.
	Custom json.RawMessage `json:"custom,omitempty"`
}

// RecordKey returns the record key.
func (c *Common) RecordKey() string { return c.Key }

func (c *Common) validate() error {
	if c.Key == "" {
		return missing("key")
	}
	if len(c.Custom) > 0 && !json.Valid(c.Custom) {
		return fmt.Errorf("%w: custom is not valid JSON", ErrMalformedRecord)
	}
	return nil
}

func (c *Common) base() *Common { return c }

// compactCustom stores Custom in compact form, which is what Serialize emits.
func compactCustom(r Record) error {
	c := r.base()
	if len(c.Custom) == 0 {
		c.Custom = nil
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, c.Custom); err != nil {
		return fmt.Errorf("%w: custom is not valid JSON", ErrMalformedRecord)
	}
	c.Custom = buf.Bytes()
	return nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing required attribute %q", ErrMalformedRecord, field)
}

// Parse decodes one record. The "type" field is read first and selects the
// variant decoder.
func Parse(data []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedRecord)
	}

	rawType, ok := fields["type"]
	if !ok || string(rawType) == "null" {
		return nil, ErrMissingTypeTag
	}
	var tag Type
	if err := json.Unmarshal(rawType, &tag); err != nil {
		return nil, fmt.Errorf("%w: type must be an integer", ErrMalformedRecord)
	}

	var r Record
	switch tag {
	case TypeGeneric:
		r = &Generic{}
	case TypeWiFi:
		r = &WiFi{}
	case TypeBankCard:
		r = &BankCard{}
	case TypeBankAccount:
		r = &BankAccount{}
	case TypeAccount:
		r = &Account{}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTypeTag, int(tag))
	}

	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if err := compactCustom(r); err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Serialize encodes a record with its discriminant. Parse(Serialize(r))
// yields a record equal to r.
func Serialize(r Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// Clone returns a copy of r that shares no memory with it.
func Clone(r Record) Record {
	var c Record
	switch v := r.(type) {
	case *Generic:
		cp := *v
		c = &cp
	case *WiFi:
		cp := *v
		c = &cp
	case *BankCard:
		cp := *v
		c = &cp
	case *BankAccount:
		cp := *v
		c = &cp
	case *Account:
		cp := *v
		c = &cp
	default:
		return nil
	}
	if custom := c.base().Custom; custom != nil {
		c.base().Custom = append(json.RawMessage(nil), custom...)
	}
	return c
}

// Canonical returns a copy of r in the form Parse yields for it, so a record
// reads the same before and after a reload.
func Canonical(r Record) (Record, error) {
	data, err := Serialize(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
