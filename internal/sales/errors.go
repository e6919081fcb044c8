package sales

import (
	"fmt"
	"strings"
)

// SchemaError reports canonical fields that no raw header could be mapped to.
// It is fatal for the file but user-correctable, so it carries everything the
// user needs to fix the export: what is missing and what was found.
type SchemaError struct {
	Missing   []string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("file is missing required columns: %s\n\nAvailable columns: %s\n\nRename the columns or start from the template with the expected format.",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// Conflict records a raw header that matched an alias of Field but had
// already been claimed by an earlier canonical field.
type Conflict struct {
	Header    string
	Field     string
	ClaimedBy string
}

func (c Conflict) String() string {
	return fmt.Sprintf("Column '%s' also matches '%s' but is already used for '%s'", c.Header, c.Field, c.ClaimedBy)
}
