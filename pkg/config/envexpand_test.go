package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("WAQEDI_TEST_HOST", "kafka-0")
	t.Setenv("WAQEDI_TEST_PORT", "9092")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single variable",
			input: "host: {{.WAQEDI_TEST_HOST}}",
			want:  "host: kafka-0",
		},
		{
			name:  "adjacent variables",
			input: "broker: {{.WAQEDI_TEST_HOST}}:{{.WAQEDI_TEST_PORT}}",
			want:  "broker: kafka-0:9092",
		},
		{
			name:  "missing variable expands empty",
			input: "password: '{{.WAQEDI_TEST_UNSET_VAR}}'",
			want:  "password: ''",
		},
		{
			name:  "dollar signs untouched",
			input: `password: "p@ss$word$HOME"`,
			want:  `password: "p@ss$word$HOME"`,
		},
		{
			name:  "no templates passes through",
			input: "port: 8080\n",
			want:  "port: 8080\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ExpandEnv([]byte(tt.input))))
		})
	}
}

func TestExpandEnvMalformedTemplatePassesThrough(t *testing.T) {
	input := "key: {{.UNCLOSED"
	assert.Equal(t, input, string(ExpandEnv([]byte(input))))
}
