package main

import (
	"encoding/json"
	"io"
)

// writeJSON encodes v as indented JSON. Journal text routinely carries <, >
// and &, so HTML escaping is off to keep messages readable.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
