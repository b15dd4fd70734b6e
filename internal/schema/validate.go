package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate validates data against the definition. The schema is compiled
// lazily on first use and reused for every subsequent document.
func (d *Definition) Validate(data []byte) error {
	compiled, err := d.compile()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func (d *Definition) compile() (*jsonschema.Schema, error) {
	d.compileOnce.Do(func() {
		b, err := json.Marshal(d.Raw)
		if err != nil {
			d.compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
			d.compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		if d.compiled, err = compiler.Compile("schema.json"); err != nil {
			d.compileErr = fmt.Errorf("compile schema: %w", err)
		}
	})
	return d.compiled, d.compileErr
}
