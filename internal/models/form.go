package models

import (
	"errors"
	"fmt"
	"strings"
)

// FieldSemantic tags a form field with what it means, independent of its ID.
type FieldSemantic string

const (
	SemanticNone      FieldSemantic = ""
	SemanticName      FieldSemantic = "name"
	SemanticFirstName FieldSemantic = "first_name"
	SemanticLastName  FieldSemantic = "last_name"
	SemanticEmail     FieldSemantic = "email"
	SemanticPhone     FieldSemantic = "phone"
)

// Valid reports whether s is a known semantic tag.
func (s FieldSemantic) Valid() bool {
	switch s {
	case SemanticNone, SemanticName, SemanticFirstName, SemanticLastName, SemanticEmail, SemanticPhone:
		return true
	}
	return false
}

// Field types accepted in a registration form.
const (
	FieldTypeText     = "text"
	FieldTypeEmail    = "email"
	FieldTypePhone    = "phone"
	FieldTypeNumber   = "number"
	FieldTypeTextarea = "textarea"
	FieldTypeSelect   = "select"
)

// FormField is one field of a QR code set's registration form.
type FormField struct {
	ID       string        `json:"id"`    // key in registration_data
	Label    string        `json:"label"` // display label
	Type     string        `json:"type"`
	Semantic FieldSemantic `json:"semantic,omitempty"`
	Required bool          `json:"required"`
	Options  []string      `json:"options,omitempty"` // for select
}

// Contact holds the semantic values recovered from registration data.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ResolveContact joins registration data against the form schema by field ID.
// Fields without a semantic tag are ignored; the first non-empty value per tag wins.
func ResolveContact(schema []FormField, data map[string]string) Contact {
	var c Contact
	var first, last string
	for _, f := range schema {
		v := strings.TrimSpace(data[f.ID])
		if v == "" {
			continue
		}
		switch f.Semantic {
		case SemanticName:
			if c.Name == "" {
				c.Name = v
			}
		case SemanticFirstName:
			if first == "" {
				first = v
			}
		case SemanticLastName:
			if last == "" {
				last = v
			}
		case SemanticEmail:
			if c.Email == "" {
				c.Email = v
			}
		case SemanticPhone:
			if c.Phone == "" {
				c.Phone = v
			}
		}
	}
	if c.Name == "" {
		c.Name = strings.TrimSpace(first + " " + last)
	}
	return c
}

// ValidateFormFields checks a form definition: non-empty unique IDs, known types and
// semantics, options for selects, and at most one email field.
func ValidateFormFields(fields []FormField) error {
	if len(fields) == 0 {
		return errors.New("form needs at least one field")
	}
	seen := make(map[string]bool, len(fields))
	emails := 0
	for i, f := range fields {
		if strings.TrimSpace(f.ID) == "" {
			return fmt.Errorf("field %d: id required", i)
		}
		if seen[f.ID] {
			return fmt.Errorf("field %q: duplicate id", f.ID)
		}
		seen[f.ID] = true
		switch f.Type {
		case FieldTypeText, FieldTypeEmail, FieldTypePhone, FieldTypeNumber, FieldTypeTextarea:
		case FieldTypeSelect:
			if len(f.Options) == 0 {
				return fmt.Errorf("field %q: select needs options", f.ID)
			}
		default:
			return fmt.Errorf("field %q: unknown type %q", f.ID, f.Type)
		}
		if !f.Semantic.Valid() {
			return fmt.Errorf("field %q: unknown semantic %q", f.ID, f.Semantic)
		}
		if f.Semantic == SemanticEmail {
			emails++
		}
	}
	if emails > 1 {
		return errors.New("at most one field may carry the email semantic")
	}
	return nil
}
