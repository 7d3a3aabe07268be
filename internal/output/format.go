package output

import (
	"encoding/json"
	"fmt"
)

// Marshal encodes an artifact's document, indented when pretty is set.
func Marshal(a Artifact, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(a.Doc, "", "  ")
	} else {
		data, err = json.Marshal(a.Doc)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", a.Name, err)
	}
	return data, nil
}
