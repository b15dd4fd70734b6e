package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes a surrounding markdown code fence from a model answer.
// Some providers wrap JSON in ```json blocks despite instructions not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Sanitize removes or normalizes members that keep an otherwise sound answer
// from validating: null members, empty optional strings, unknown top-level
// keys. Required members are never dropped. Returns the cleaned document and
// the list of adjustments made.
func (d *Definition) Sanitize(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	required := map[string]struct{}{}
	for _, k := range d.Required() {
		required[k] = struct{}{}
	}
	known := d.Properties()

	var dropped []string
	for k, v := range m {
		if known != nil {
			if _, ok := known[k]; !ok {
				delete(m, k)
				dropped = append(dropped, k+"(unknown)")
				continue
			}
		}
		if _, req := required[k]; req {
			continue
		}
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else if s != t {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}
