package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/salesloom-cli/internal/sales"
)

// DefaultMaxBytes is the upload size limit applied when none is configured.
const DefaultMaxBytes int64 = 10 << 20

// Reader turns the bytes of one file format into an untyped table.
type Reader interface {
	CanRead(filename string) bool
	Read(content []byte) (*sales.RawTable, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}

var (
	// ErrUnsupported indicates a file extension no reader accepts.
	ErrUnsupported = errors.New("unsupported file format")
	// ErrTooLarge indicates a file over the configured size limit.
	ErrTooLarge = errors.New("file too large")
)

// FileFormatError reports a file that cannot be loaded: unsupported
// extension, oversize or unreadable content.
type FileFormatError struct {
	Name string
	Err  error
}

func (e *FileFormatError) Error() string {
	return fmt.Sprintf("cannot load %s: %v", e.Name, e.Err)
}

func (e *FileFormatError) Unwrap() error { return e.Err }

// Options controls loading limits.
type Options struct {
	// MaxBytes rejects larger files; 0 means DefaultMaxBytes.
	MaxBytes int64
}

func (o Options) maxBytes() int64 {
	if o.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return o.MaxBytes
}

// LoadFile reads path and parses it with the reader registered for its extension.
func LoadFile(path string, opt Options) (*sales.RawTable, error) {
	name := filepath.Base(path)
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if st.IsDir() {
		return nil, &FileFormatError{Name: name, Err: errors.New("is a directory")}
	}
	if st.Size() > opt.maxBytes() {
		return nil, &FileFormatError{Name: name, Err: tooLarge(st.Size(), opt.maxBytes())}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	return LoadReader(name, f, opt)
}

// LoadReader parses content read from r; name selects the format by extension.
func LoadReader(name string, r io.Reader, opt Options) (*sales.RawTable, error) {
	rd := readerFor(name)
	if rd == nil {
		return nil, &FileFormatError{Name: name, Err: fmt.Errorf("%w (%s); use .csv, .tsv or .xlsx", ErrUnsupported, extOf(name))}
	}
	limit := opt.maxBytes()
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if n > limit {
		return nil, &FileFormatError{Name: name, Err: tooLarge(n, limit)}
	}
	t, err := rd.Read(buf.Bytes())
	if err != nil {
		return nil, &FileFormatError{Name: name, Err: err}
	}
	if len(t.Headers) == 0 {
		return nil, &FileFormatError{Name: name, Err: errors.New("no header row found")}
	}
	return t, nil
}

// Supported lists the accepted extensions.
func Supported() []string { return []string{".csv", ".tsv", ".xlsx"} }

func readerFor(name string) Reader {
	for _, r := range registry {
		if r.CanRead(name) {
			return r
		}
	}
	return nil
}

func extOf(name string) string {
	if ext := filepath.Ext(name); ext != "" {
		return strings.ToLower(ext)
	}
	return "no extension"
}

func tooLarge(size, limit int64) error {
	return fmt.Errorf("%w: %.1f MB exceeds the %.1f MB limit", ErrTooLarge, float64(size)/(1<<20), float64(limit)/(1<<20))
}
