package handlers

import "github.com/xeipuuv/gojsonschema"

// Required fields are checked by the pipeline, which reports them with the
// exact field name. The schemas only pin down types.
const (
	SeparateRequestSchemaDefinition = `{
		"type": "object",
		"properties": {
			"videoId": {"type": "string"}
		}
	}`

	TranscribeRequestSchemaDefinition = `{
		"type": "object",
		"properties": {
			"trackId": {"type": "string"},
			"startTime": {"type": ["number", "null"]},
			"endTime": {"type": ["number", "null"]}
		}
	}`

	PrepareVideoRequestSchemaDefinition = `{
		"type": "object",
		"properties": {
			"videoId": {"type": "string"},
			"userId": {"type": "string"},
			"title": {"type": "string"},
			"description": {"type": "string"}
		}
	}`
)

var inputSchemas map[string]string = map[string]string{
	"Separate":     SeparateRequestSchemaDefinition,
	"Transcribe":   TranscribeRequestSchemaDefinition,
	"PrepareVideo": PrepareVideoRequestSchemaDefinition,
}

func compileJsonSchemas() map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, 0)
	for name, text := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			panic(err) // fix schema text
		}
		compiled[name] = schema
	}
	return compiled
}

var inputSchemasCompiled map[string]*gojsonschema.Schema = compileJsonSchemas()
