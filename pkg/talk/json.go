package talk

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

// unmarshalArgs unmarshals a function-call argument document into v.
// Streamed argument fragments are concatenated verbatim, so the result
// is occasionally damaged; on a syntax error it repairs the document
// and retries once.
func unmarshalArgs(data string, v any) error {
	err := json.Unmarshal([]byte(data), v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, err := jsonrepair.JSONRepair(data)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// normalizeArgs returns the argument document as-is when it is valid
// JSON, or the repaired form when it only parses after repair. The
// original text is returned when repair fails too.
func normalizeArgs(data string) string {
	if json.Valid([]byte(data)) {
		return data
	}
	fixed, err := jsonrepair.JSONRepair(data)
	if err != nil {
		return data
	}
	return fixed
}
