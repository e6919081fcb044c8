package sales

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical field names. Every cleaned table carries exactly these columns,
// in this order.
const (
	FieldDate     = "Date"
	FieldOrderID  = "Order ID"
	FieldProduct  = "Product Name"
	FieldQuantity = "Quantity"
	FieldPrice    = "Price"
	FieldState    = "Customer State"
	FieldTotal    = "Total"
)

var canonicalFields = []string{
	FieldDate, FieldOrderID, FieldProduct, FieldQuantity, FieldPrice, FieldState, FieldTotal,
}

// Fields returns the canonical field names in schema order.
func Fields() []string {
	out := make([]string, len(canonicalFields))
	copy(out, canonicalFields)
	return out
}

// RawTable is an untyped table as produced by a file loader: a header row
// and string cells. Rows may be shorter than Headers; missing cells read as "".
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// Column returns the index of the header equal to name, or -1.
func (t *RawTable) Column(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at (row, col), or "" when out of range.
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// Record is one row of the canonical sales table.
//
// Total is the line total as supplied by the export; it is not required to
// equal Quantity*UnitPrice. Empty OrderID and State mean the value was missing.
type Record struct {
	Date      time.Time
	OrderID   string
	Product   string
	Quantity  decimal.Decimal
	UnitPrice decimal.NullDecimal
	State     string
	Total     decimal.Decimal
}

// Dataset is the cleaned, date-ordered sales table. It is immutable once built.
type Dataset struct {
	records []Record

	fpOnce sync.Once
	fp     string
}

// NewDataset copies records into a Dataset, stable-sorted ascending by date.
func NewDataset(records []Record) *Dataset {
	rs := make([]Record, len(records))
	copy(rs, records)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Date.Before(rs[j].Date) })
	return &Dataset{records: rs}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Record returns the i-th record.
func (d *Dataset) Record(i int) Record { return d.records[i] }

// Records returns a copy of all records in date order.
func (d *Dataset) Records() []Record {
	if d == nil {
		return nil
	}
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// DateRange returns the earliest and latest record dates. ok is false for an
// empty dataset.
func (d *Dataset) DateRange() (first, last time.Time, ok bool) {
	if d.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	return d.records[0].Date, d.records[len(d.records)-1].Date, true
}

// Raw renders the dataset back into an untyped canonical table. Cleaning the
// result yields an identical dataset.
func (d *Dataset) Raw() *RawTable {
	t := &RawTable{Headers: Fields(), Rows: make([][]string, 0, d.Len())}
	if d == nil {
		return t
	}
	for _, r := range d.records {
		t.Rows = append(t.Rows, r.cells())
	}
	return t
}

// Fingerprint is a content hash of the full dataset. Any change to any cell
// changes it; cached answers are keyed by it.
func (d *Dataset) Fingerprint() string {
	d.fpOnce.Do(func() {
		h := sha256.New()
		h.Write([]byte(strings.Join(canonicalFields, "\x1f")))
		h.Write([]byte{'\n'})
		for _, r := range d.records {
			h.Write([]byte(strings.Join(r.cells(), "\x1f")))
			h.Write([]byte{'\n'})
		}
		d.fp = hex.EncodeToString(h.Sum(nil))
	})
	return d.fp
}

func (r Record) cells() []string {
	price := ""
	if r.UnitPrice.Valid {
		price = r.UnitPrice.Decimal.String()
	}
	return []string{
		FormatDate(r.Date),
		r.OrderID,
		r.Product,
		r.Quantity.String(),
		price,
		r.State,
		r.Total.String(),
	}
}

// FormatDate renders a record date as YYYY-MM-DD when it is a UTC midnight,
// otherwise with time, any fractional seconds and zone offset, so that
// ParseDate reads back the same instant.
func FormatDate(t time.Time) string {
	_, off := t.Zone()
	if off == 0 && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05.999999999 -0700")
}

// Day returns the calendar date of t (as seen in t's own location) as UTC
// midnight, so days from mixed zones group together.
func Day(t time.Time) time.Time {
	y, m, dd := t.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}
