package api

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiDoc []byte

// GetSwagger parses the embedded OpenAPI document. Every call returns a fresh
// copy, so callers may mutate it.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiDoc)
	if err != nil {
		return nil, fmt.Errorf("loading embedded openapi document: %w", err)
	}
	return doc, nil
}
