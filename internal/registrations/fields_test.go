package registrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessbox/backend/internal/models"
)

var testSchema = []models.FormField{
	{ID: "f_name", Label: "Name", Type: models.FieldTypeText, Semantic: models.SemanticName, Required: true},
	{ID: "f_mail", Label: "Email", Type: models.FieldTypeEmail, Semantic: models.SemanticEmail, Required: true},
	{ID: "f_phone", Label: "Phone", Type: models.FieldTypePhone, Semantic: models.SemanticPhone},
	{ID: "f_size", Label: "Household", Type: models.FieldTypeNumber},
	{ID: "f_pick", Label: "Pickup", Type: models.FieldTypeSelect, Options: []string{"Morning", "Evening"}},
}

func TestValidateSubmissionClean(t *testing.T) {
	got, err := ValidateSubmission(testSchema, map[string]any{
		"f_name":  "  Ada Lovelace ",
		"f_mail":  "Ada@Example.com",
		"f_phone": "+1 (555) 010-0100",
		"f_size":  "4",
		"f_pick":  "Evening",
		"extra":   "dropped",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"f_name":  "Ada Lovelace",
		"f_mail":  "ada@example.com",
		"f_phone": "+1 (555) 010-0100",
		"f_size":  "4",
		"f_pick":  "Evening",
	}, got)
}

func TestValidateSubmissionErrors(t *testing.T) {
	_, err := ValidateSubmission(testSchema, map[string]any{
		"f_name":  " ",
		"f_mail":  "not-an-email",
		"f_phone": "call me",
		"f_size":  "four",
		"f_pick":  "Noon",
	})
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FieldErrors{
		"f_name":  "required",
		"f_mail":  "invalid email",
		"f_phone": "invalid phone number",
		"f_size":  "must be a number",
		"f_pick":  "not one of the options",
	}, fe)
	assert.Contains(t, fe.Error(), "f_mail: invalid email")
}

func TestValidateSubmissionOptionalEmpty(t *testing.T) {
	got, err := ValidateSubmission(testSchema, map[string]any{"f_name": "A", "f_mail": "a@b.co"})
	require.NoError(t, err)
	assert.NotContains(t, got, "f_phone")
}

func TestValidateSubmissionScalars(t *testing.T) {
	got, err := ValidateSubmission(testSchema, map[string]any{
		"f_name": "Ada",
		"f_mail": "a@b.co",
		"f_size": float64(42),
		"f_pick": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "42", got["f_size"])
	assert.NotContains(t, got, "f_pick")

	got, err = ValidateSubmission(testSchema, map[string]any{"f_name": true, "f_mail": "a@b.co", "f_size": 2.5})
	require.NoError(t, err)
	assert.Equal(t, "true", got["f_name"])
	assert.Equal(t, "2.5", got["f_size"])
}

func TestValidateSubmissionRejectsNested(t *testing.T) {
	_, err := ValidateSubmission(testSchema, map[string]any{
		"f_name": map[string]any{"first": "Ada"},
		"f_mail": "a@b.co",
		"f_pick": []any{"Morning", "Evening"},
	})
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FieldErrors{
		"f_name": "must be a single value",
		"f_pick": "must be a single value",
	}, fe)
}
