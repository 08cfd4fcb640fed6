package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Main Street Facility", "main street facility"},
		{"strips accents", "Café Façade", "cafe facade"},
		{"punctuation to spaces", "ACME, Inc. - Plant #3", "acme inc plant 3"},
		{"squeezes whitespace", "  Plant   A \t B ", "plant a b"},
		{"empty", "", ""},
		{"only punctuation", "***", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}
