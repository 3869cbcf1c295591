package response

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/capitalized/internal/validation"
)

func TestStatusOKWithData(t *testing.T) {
	r := StatusOKWithData(map[string]any{"x": 1})
	assert.Equal(t, StatusOK, r.Status)
	assert.Empty(t, r.Error)
	assert.Equal(t, map[string]any{"x": 1}, r.Data)
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantError  string
		wantFields map[string]string
	}{
		{
			name: "field errors",
			err: &validation.Error{Fields: map[string]string{
				"phone": "Invalid Kenyan phone number",
				"email": "Email is required",
			}},
			wantError: "Email is required",
			wantFields: map[string]string{
				"phone": "Invalid Kenyan phone number",
				"email": "Email is required",
			},
		},
		{
			name:      "plain error",
			err:       errors.New("boom"),
			wantError: "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidationError(tt.err)
			assert.Equal(t, StatusError, r.Status)
			assert.Equal(t, tt.wantError, r.Error)
			assert.Equal(t, tt.wantFields, r.Fields)
		})
	}
}
