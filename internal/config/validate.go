package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// ValidationError is a single schema violation with the manifest field
// path it applies to.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validateSchema checks a decoded manifest against the embedded CUE
// schema and returns every violation found.
func validateSchema(raw map[string]any) []ValidationError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Suite"))
	if err := schema.Err(); err != nil {
		return []ValidationError{{Field: "schema", Message: err.Error()}}
	}

	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return []ValidationError{{Field: "manifest", Message: err.Error()}}
	}

	// Concrete(true) makes missing required fields (corpus.dir,
	// compiler.command) validation errors, not merely incomplete values.
	unified := schema.Unify(value)
	err := unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		out = append(out, ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return out
}
