package sales

import "strings"

// AliasTable maps a canonical field to the raw header variants accepted for
// it. Alias order is informational; matching walks raw headers in file order.
type AliasTable map[string][]string

// DefaultAliases returns the built-in alias table covering Shopify order
// exports and the common hand-made spreadsheet spellings.
func DefaultAliases() AliasTable {
	return AliasTable{
		FieldDate:     {"Date", "Order Date", "Created at", "date", "order_date"},
		FieldOrderID:  {"Order ID", "Order_ID", "Order Number", "Name", "order_id", "id", "Order"},
		FieldProduct:  {"Product Name", "Product_Name", "Lineitem name", "Title", "product", "item", "Product"},
		FieldQuantity: {"Quantity", "Lineitem quantity", "Qty", "quantity", "qty"},
		FieldPrice:    {"Price", "Lineitem price", "Unit Price", "price", "unit_price"},
		FieldState:    {"Customer State", "Shipping Province", "State", "state", "province", "Shipping State"},
		FieldTotal:    {"Total", "Subtotal", "Amount", "total", "amount"},
	}
}

// Resolution records which raw header was mapped to a canonical field.
type Resolution struct {
	Field  string
	Header string
	Column int
	// Folded is true when the header only matched case-insensitively.
	Folded bool
}

// Mapping describes how Normalize resolved the raw headers.
type Mapping struct {
	Resolved  []Resolution
	Conflicts []Conflict
}

// Normalize maps raw headers onto the canonical schema and returns a table
// restricted to exactly the canonical fields, in canonical order.
//
// For each canonical field (in schema order) the raw headers are scanned for
// an exact alias match, then for a case-insensitive one. The first matching
// header wins and is consumed: a header claimed by an earlier field is never
// reassigned, and the skipped match is reported in Mapping.Conflicts. Any
// field left unresolved yields a *SchemaError.
func Normalize(raw *RawTable, aliases AliasTable) (*RawTable, Mapping, error) {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	headers := make([]string, len(raw.Headers))
	for i, h := range raw.Headers {
		headers[i] = cleanHeader(h)
	}

	var m Mapping
	claimed := make(map[int]string, len(canonicalFields))
	seen := map[Conflict]bool{}
	var missing []string

	for _, field := range canonicalFields {
		names := aliases[field]
		col, folded := -1, false
		for pass := 0; pass < 2 && col < 0; pass++ {
			for j, h := range headers {
				if !matchesAlias(h, names, pass == 1) {
					continue
				}
				if owner, taken := claimed[j]; taken {
					c := Conflict{Header: raw.Headers[j], Field: field, ClaimedBy: owner}
					if !seen[c] {
						seen[c] = true
						m.Conflicts = append(m.Conflicts, c)
					}
					continue
				}
				col, folded = j, pass == 1
				break
			}
		}
		if col < 0 {
			missing = append(missing, field)
			continue
		}
		claimed[col] = field
		m.Resolved = append(m.Resolved, Resolution{Field: field, Header: raw.Headers[col], Column: col, Folded: folded})
	}

	if len(missing) > 0 {
		available := make([]string, len(raw.Headers))
		copy(available, raw.Headers)
		return nil, m, &SchemaError{Missing: missing, Available: available}
	}

	out := &RawTable{Headers: Fields(), Rows: make([][]string, len(raw.Rows))}
	for i := range raw.Rows {
		row := make([]string, len(m.Resolved))
		for k, res := range m.Resolved {
			row[k] = raw.Cell(i, res.Column)
		}
		out.Rows[i] = row
	}
	return out, m, nil
}

func matchesAlias(header string, names []string, fold bool) bool {
	for _, n := range names {
		if fold {
			if strings.EqualFold(header, n) {
				return true
			}
		} else if header == n {
			return true
		}
	}
	return false
}

// cleanHeader strips a UTF-8 BOM and surrounding whitespace; spreadsheet
// tools routinely add both to the first header.
func cleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}
