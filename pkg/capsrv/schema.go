package capsrv

import "github.com/invopop/jsonschema"

// ParamSchema reflects a Go struct into the raw JSON Schema bytes a
// tool registration expects, so each tool's parameter shape is
// declared once as a Go type instead of hand-written JSON.
func ParamSchema(v any) ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	schema := r.Reflect(v)
	return schema.MarshalJSON()
}
