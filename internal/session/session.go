// Package session binds one uploaded sales file to everything derived from
// it, and routes questions through the credential check, answer cache,
// usage governor and Q&A agent.
package session

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/salesloom-cli/internal/analytics"
	"github.com/KaramelBytes/salesloom-cli/internal/loader"
	"github.com/KaramelBytes/salesloom-cli/internal/sales"
	"github.com/KaramelBytes/salesloom-cli/internal/sandbox"
)

// Session is the processed form of one file. It is never mutated; a new
// upload produces a new Session.
type Session struct {
	ID          string
	Name        string
	LoadedAt    time.Time
	Dataset     *sales.Dataset
	Mapping     sales.Mapping
	Warnings    []string
	Analyzer    *analytics.Analyzer
	frame       *sandbox.DataFrame
	fingerprint string
}

// New derives a Session from an already-cleaned dataset.
func New(name string, ds *sales.Dataset, m sales.Mapping, warnings []string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Name:        name,
		LoadedAt:    time.Now(),
		Dataset:     ds,
		Mapping:     m,
		Warnings:    warnings,
		Analyzer:    analytics.New(ds),
		frame:       sandbox.FromDataset(ds),
		fingerprint: ds.Fingerprint(),
	}
}

// FromRaw normalizes and cleans a raw table. A *sales.SchemaError aborts.
func FromRaw(name string, raw *sales.RawTable, aliases sales.AliasTable) (*Session, error) {
	ds, m, warnings, err := sales.Process(raw, aliases)
	if err != nil {
		return nil, err
	}
	return New(name, ds, m, warnings), nil
}

// Open loads a file from disk.
func Open(path string, opt loader.Options) (*Session, error) {
	raw, err := loader.LoadFile(path, opt)
	if err != nil {
		return nil, err
	}
	return FromRaw(filepath.Base(path), raw, nil)
}

// Read loads an uploaded stream; name selects the file format.
func Read(name string, r io.Reader, opt loader.Options) (*Session, error) {
	raw, err := loader.LoadReader(name, r, opt)
	if err != nil {
		return nil, err
	}
	return FromRaw(name, raw, nil)
}

// Fingerprint identifies the dataset content for answer caching.
func (s *Session) Fingerprint() string { return s.fingerprint }

// Frame is the sandbox view of the dataset.
func (s *Session) Frame() *sandbox.DataFrame { return s.frame }

// Report builds the descriptive analysis with rankings cut to topN.
func (s *Session) Report(topN int) *analytics.Report {
	return s.Analyzer.Build(s.Name, topN, s.Warnings)
}

func (s *Session) String() string {
	return fmt.Sprintf("%s (%d rows, session %s)", s.Name, s.Dataset.Len(), s.ID[:8])
}
