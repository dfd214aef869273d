package flowlog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrTooFewFields marks a line with fewer than MinFields fields. Such
	// lines are skipped, not fatal.
	ErrTooFewFields = errors.New("too few fields")
	// ErrInvalidEncoding marks input that is not UTF-8 text.
	ErrInvalidEncoding = errors.New("input is not valid UTF-8 text")
)

// PortError reports a destination port field that is not a port number.
type PortError struct {
	Line  int
	Value string
	Err   error
}

func (e *PortError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: invalid destination port %q: %v", e.Line, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid destination port %q: %v", e.Value, e.Err)
}

func (e *PortError) Unwrap() error { return e.Err }

// ParseLine extracts the destination port and protocol number from a flow
// log line such as an AWS VPC flow log (version 2) record:
//
//	2 123456789012 eni-0a1b2c3d 10.0.1.201 198.51.100.2 49153 443 6 25 20000 1620140761 1620140821 ACCEPT OK
//
// Fields 7 and 8 (1-indexed) are the destination port and protocol number.
// Everything else is ignored. Lines with fewer than MinFields fields return
// ErrTooFewFields; a bad port returns a *PortError.
func ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < MinFields {
		return Record{}, ErrTooFewFields
	}

	port, err := parsePort(fields[dstPortField])
	if err != nil {
		return Record{}, &PortError{Value: fields[dstPortField], Err: err}
	}

	return Record{DstPort: port, Protocol: fields[protocolField]}, nil
}

// parsePort accepts a decimal port with an optional leading '+'.
func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, 16)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			return 0, numErr.Err
		}
		return 0, err
	}
	return uint16(n), nil
}
