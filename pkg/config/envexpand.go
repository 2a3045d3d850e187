package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go templates.
// Uses {{.VAR_NAME}} syntax so literal $ characters in the file (passwords,
// URL-encoded values, regular expressions) are never touched.
//
// Examples:
//   - {{.DB_PASSWORD}} → value of DB_PASSWORD
//   - {{.KAFKA_HOST}}:{{.KAFKA_PORT}} → both variables expanded in place
//
// Missing variables expand to the empty string; validation catches required
// fields that end up empty. Malformed template syntax passes the content
// through unchanged so the YAML parser can report it.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		// Split on the first = only; values may contain = themselves.
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}

	return buf.Bytes()
}
