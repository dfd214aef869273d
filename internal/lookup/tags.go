package lookup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const tagColumns = 3

// ErrMissingHeader is returned for a tag lookup without even a header row.
var ErrMissingHeader = errors.New("missing header row")

// RowError reports a malformed tag lookup row. Line is the 1-indexed line
// in the source.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row on line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// TagKey identifies a tag lookup entry.
type TagKey struct {
	Port     uint16
	Protocol string
}

// TagLookup maps a destination port and lowercase protocol name to a tag.
type TagLookup map[TagKey]string

// Tag implements flowlog.Tagger.
func (t TagLookup) Tag(port uint16, protocol string) (string, bool) {
	tag, ok := t[TagKey{Port: port, Protocol: protocol}]
	return tag, ok
}

// LoadTags reads a dstport,protocol,tag CSV table. The first row is a
// header and is always skipped. Protocols are lowercased, tags are kept
// verbatim and a repeated key keeps the last tag seen.
//
// Any malformed row fails the whole load.
func LoadTags(r io.Reader) (TagLookup, error) {
	cr := csv.NewReader(r)
	// Column count is checked per data row so the header shape is not enforced.
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingHeader
		}
		return nil, rowError(err)
	}

	out := TagLookup{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rowError(err)
		}

		line, _ := cr.FieldPos(0)
		if len(rec) != tagColumns {
			return nil, &RowError{Line: line, Err: fmt.Errorf("expected %d columns, got %d", tagColumns, len(rec))}
		}

		port, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(rec[0]), "+"), 10, 16)
		if err != nil {
			return nil, &RowError{Line: line, Err: fmt.Errorf("invalid dstport %q", rec[0])}
		}

		out[TagKey{Port: uint16(port), Protocol: strings.ToLower(rec[1])}] = rec[2]
	}

	return out, nil
}

func rowError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &RowError{Line: pe.Line, Err: pe.Err}
	}
	return err
}
