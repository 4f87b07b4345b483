package report

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed error_report.schema.json
var errorReportSchemaJSON []byte

var errorReportSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(errorReportSchemaJSON))
})

// ValidateErrorReport checks raw report JSON against the embedded schema.
func ValidateErrorReport(data []byte) error {
	schema, err := errorReportSchema()
	if err != nil {
		return fmt.Errorf("load error report schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate error report: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid error report: %s", strings.Join(problems, "; "))
}
