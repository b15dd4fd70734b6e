// Package schema owns the extraction schema: the named fields and types the
// model is asked to populate from a document, and validation of its answers.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"invoicedigest/internal/common"
)

// Definition is one extraction schema. Raw is a JSON-Schema (draft 2020-12
// subset) as a generic map; it is sent to the provider as an output
// constraint and used locally to validate responses. Raw must not be mutated
// after the first Validate call.
type Definition struct {
	Title       string
	Description string
	Raw         map[string]any

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// Required returns the schema's required top-level member names.
func (d *Definition) Required() []string {
	raw, ok := d.Raw["required"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Properties returns the set of top-level member names the schema defines.
func (d *Definition) Properties() map[string]struct{} {
	props, ok := d.Raw["properties"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]struct{}, len(props))
	for k := range props {
		out[k] = struct{}{}
	}
	return out
}

// JSON renders the schema for embedding into a prompt.
func (d *Definition) JSON() string {
	b, _ := json.MarshalIndent(d.Raw, "", "  ")
	return string(b)
}

// Load reads an external schema file (JSON or YAML by extension). An empty
// path yields the built-in invoice schema.
func Load(path string) (*Definition, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultInvoiceSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewConfigError(fmt.Sprintf("read schema file %s", path), err)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, common.NewConfigError(fmt.Sprintf("parse schema file %s", path), err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, common.NewConfigError(fmt.Sprintf("parse schema file %s", path), err)
		}
	}
	if _, ok := raw["properties"].(map[string]any); !ok {
		return nil, common.NewConfigError(fmt.Sprintf("schema file %s has no object properties", path), nil)
	}

	def := &Definition{Raw: raw}
	if t, ok := raw["title"].(string); ok {
		def.Title = t
	}
	if d, ok := raw["description"].(string); ok {
		def.Description = d
	}
	return def, nil
}

// DefaultInvoiceSchema returns the built-in invoice extraction schema.
func DefaultInvoiceSchema() *Definition {
	props := map[string]any{
		"issuing_company_name":      strProp("The name of the company issuing the invoice"),
		"issuing_company_address":   strProp("The address of the company issuing the invoice"),
		"issuing_company_phone":     strProp("The phone number of the company issuing the invoice"),
		"issuing_company_website":   strProp("The website of the company issuing the invoice"),
		"issuing_company_email":     strProp("The email address of the company issuing the invoice"),
		"receiving_company_name":    strProp("The name of the company receiving the invoice"),
		"receiving_company_address": strProp("The address of the company receiving the invoice"),
		"receiving_company_phone":   strProp("The phone number of the company receiving the invoice"),
		"receiving_company_website": strProp("The website of the company receiving the invoice"),
		"receiving_company_email":   strProp("The email address of the company receiving the invoice"),
		"invoice_number":            strProp("The unique identifier for the invoice/bill"),
		"issue_date": dateProp("The date when the invoice was issued in YYYY-MM-DD format. " +
			"Infer the date format from the invoice using the issuing company country if necessary"),
		"due_date": dateProp("The date when the invoice payment is due in YYYY-MM-DD format. " +
			"Infer the date format from the invoice using the issuing company country if necessary"),
		"reference_number":      strProp("The reference number associated with the invoice"),
		"delivery_order_number": strProp("The delivery order number associated with the invoice"),
		"currency":              strProp("The currency for all amounts in the invoice, if unspecified, assume SGD"),
		"line_items": map[string]any{
			"type":        "array",
			"description": "List of items/services in the invoice",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"item_name":   strProp("The name of the item or service"),
					"item_code":   strProp("The code or identifier for the item, sometimes called stock code"),
					"description": strProp("Description of the item or service"),
					"quantity":    numProp("The quantity of the item"),
					"unit_price":  numProp("The price per unit of the item"),
					"amount":      numProp("The total amount for this line item (quantity × unit_price)"),
				},
				"required": []any{"item_name", "quantity", "unit_price", "amount"},
			},
		},
		"gst_information": map[string]any{
			"type":        "object",
			"description": "Goods and services tax (GST) or other tax information for the invoice",
			"properties": map[string]any{
				"gst_description": strProp("Description of the GST/tax (e.g., 'GST 7%', 'VAT', etc.)"),
				"amount":          numProp("The GST/tax amount"),
			},
			"required": []any{"gst_description", "amount"},
		},
		"total_amount_due": numProp("The total amount due including all taxes and charges"),
		"other_notes":      strProp("Any additional notes or comments related to the invoice"),
	}

	return &Definition{
		Title:       "invoice",
		Description: "extracted invoice data",
		Raw: map[string]any{
			"title":       "invoice",
			"description": "extracted invoice data",
			"type":        "object",
			"properties":  props,
			"required":    []any{"invoice_number", "total_amount_due"},
		},
	}
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func numProp(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func dateProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "pattern": `^\d{4}-\d{2}-\d{2}$`}
}
