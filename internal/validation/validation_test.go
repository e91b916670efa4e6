package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) error
		input   string
		wantErr bool
	}{
		{name: "title", fn: ValidateTitle, input: "Run 5k"},
		{name: "title blank", fn: ValidateTitle, input: "   ", wantErr: true},
		{name: "title too long", fn: ValidateTitle, input: strings.Repeat("é", 201), wantErr: true},
		{name: "title at limit", fn: ValidateTitle, input: strings.Repeat("é", 200)},
		{name: "name", fn: ValidateName, input: " Bob "},
		{name: "name blank", fn: ValidateName, input: "", wantErr: true},
		{name: "name too long", fn: ValidateName, input: strings.Repeat("a", 101), wantErr: true},
		{name: "email", fn: ValidateEmail, input: "bob@example.com"},
		{name: "email with display name", fn: ValidateEmail, input: "Bob <bob@example.com>", wantErr: true},
		{name: "email missing", fn: ValidateEmail, input: "", wantErr: true},
		{name: "email garbage", fn: ValidateEmail, input: "bob", wantErr: true},
		{name: "color empty", fn: ValidateColor, input: ""},
		{name: "color hex", fn: ValidateColor, input: "#A1b2C3"},
		{name: "color short", fn: ValidateColor, input: "#abc", wantErr: true},
		{name: "color word", fn: ValidateColor, input: "blue", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.input)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var verr *Error
			assert.True(t, errors.As(err, &verr), "want *validation.Error, got %v", err)
		})
	}
}
