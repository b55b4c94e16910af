// Package format reads and writes activity recordings. Codecs are looked up
// by file extension.
package format

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/briangreenhill/hrmerge/internal/activity"
)

var (
	ErrUnsupportedFormat = errors.New("format: unsupported format")
	ErrMalformedInput    = errors.New("format: malformed input")
)

// Parser builds an activity from an encoded recording.
type Parser interface {
	Parse(r io.Reader) (*activity.Activity, error)
}

// Dumper serializes an activity.
type Dumper interface {
	Dump(w io.Writer, a *activity.Activity) error
}

var (
	parsers = map[string]Parser{
		"tcx": TCX{},
		"gpx": GPX{},
		"fit": FIT{},
	}
	dumpers = map[string]Dumper{
		"tcx":     TCX{},
		"gpx":     GPX{},
		"fit":     FIT{},
		"parquet": Parquet{},
	}
)

// Key returns the registry key for path: its lower-cased extension without
// the dot.
func Key(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func ParserFor(path string) (Parser, error) {
	p, ok := parsers[Key(path)]
	if !ok {
		return nil, fmt.Errorf("%w: cannot read %q", ErrUnsupportedFormat, path)
	}
	return p, nil
}

func DumperFor(path string) (Dumper, error) {
	d, ok := dumpers[Key(path)]
	if !ok {
		return nil, fmt.Errorf("%w: cannot write %q", ErrUnsupportedFormat, path)
	}
	return d, nil
}

// Readable lists the extensions that can be parsed.
func Readable() []string {
	return sortedKeys(parsers)
}

// Writable lists the extensions that can be dumped.
func Writable() []string {
	return sortedKeys(dumpers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ParseFile opens path and parses it with the codec for its extension.
func ParseFile(path string) (*activity.Activity, error) {
	p, err := ParserFor(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error reading activity file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("activity file %q is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return a, nil
}

// DumpFile writes a to path with the codec for its extension. The file is
// only created once a dumper has been found.
func DumpFile(path string, a *activity.Activity) (err error) {
	d, err := DumperFor(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := d.Dump(f, a); err != nil {
		return fmt.Errorf("dump %s: %w", path, err)
	}
	return nil
}

func malformed(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrMalformedInput, what)
	}
	return fmt.Errorf("%w: %s: %w", ErrMalformedInput, what, err)
}

// lapHeartRate returns the average and maximum heart rate written into lap
// summaries. Stored summaries win over trackpoint values; 0 means unknown.
func lapHeartRate(lap *activity.Lap) (avg, peak int) {
	if v, err := lap.AvgHeartRate(); err == nil {
		avg = int(math.Round(v))
	}
	if v, err := lap.MaxHeartRate(); err == nil {
		peak = v
	}
	return avg, peak
}
