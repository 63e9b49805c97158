package registrations

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/blessbox/backend/internal/models"
)

const maxValueLen = 2000

var validate = validator.New()

// FieldErrors maps field IDs to what is wrong with the submitted value.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	ids := make([]string, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id + ": " + e[id]
	}
	return strings.Join(parts, "; ")
}

// ValidateSubmission checks submitted data against the form schema and returns the
// trimmed values of known fields as strings. Scalars (numbers, bools) are formatted;
// objects and arrays are rejected. Keys not in the schema are dropped.
func ValidateSubmission(schema []models.FormField, data map[string]any) (map[string]string, error) {
	clean := make(map[string]string, len(schema))
	errs := FieldErrors{}
	for _, f := range schema {
		raw, ok := scalarString(data[f.ID])
		if !ok {
			errs[f.ID] = "must be a single value"
			continue
		}
		v := strings.TrimSpace(raw)
		if v == "" {
			if f.Required {
				errs[f.ID] = "required"
			}
			continue
		}
		if len(v) > maxValueLen {
			errs[f.ID] = "too long"
			continue
		}
		if msg := checkValue(f, v); msg != "" {
			errs[f.ID] = msg
			continue
		}
		if f.Type == models.FieldTypeEmail || f.Semantic == models.SemanticEmail {
			v = strings.ToLower(v)
		}
		clean[f.ID] = v
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return clean, nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func checkValue(f models.FormField, v string) string {
	switch {
	case f.Type == models.FieldTypeEmail || f.Semantic == models.SemanticEmail:
		if validate.Var(v, "email") != nil {
			return "invalid email"
		}
	case f.Type == models.FieldTypeNumber:
		if validate.Var(v, "numeric") != nil {
			return "must be a number"
		}
	case f.Type == models.FieldTypePhone || f.Semantic == models.SemanticPhone:
		if validate.Var(strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(v), "e164|numeric") != nil {
			return "invalid phone number"
		}
	case f.Type == models.FieldTypeSelect:
		for _, o := range f.Options {
			if o == v {
				return ""
			}
		}
		return "not one of the options"
	}
	return ""
}
