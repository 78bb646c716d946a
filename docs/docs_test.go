package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestRegisteredDocIsValidJSON(t *testing.T) {
	SwaggerInfo.Host = "uploads.example.test"
	SwaggerInfo.Schemes = []string{"https"}

	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var parsed struct {
		Host    string                     `json:"host"`
		Schemes []string                   `json:"schemes"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))

	assert.Equal(t, "uploads.example.test", parsed.Host)
	assert.Equal(t, []string{"https"}, parsed.Schemes)
	for _, path := range []string{
		"/api/upload/media",
		"/api/upload/trailer",
		"/api/upload/status/{jobId}",
		"/api/upload/current/{kind}",
		"/api/upload/detach/{kind}",
		"/auth/verify",
	} {
		assert.Contains(t, parsed.Paths, path)
	}
}
