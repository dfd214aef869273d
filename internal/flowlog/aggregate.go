package flowlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Sink receives warnings about lines that were skipped. Fatal problems are
// returned by Parse instead.
type Sink interface {
	Warn(msg string, kv ...any)
}

// ProtocolResolver maps a protocol number token to a protocol name.
type ProtocolResolver interface {
	Name(number string) (string, bool)
}

// Tagger maps a destination port and protocol name to a tag.
type Tagger interface {
	Tag(port uint16, protocol string) (string, bool)
}

// Parser aggregates flow log lines into tag and combination counts.
type Parser struct {
	Protocols ProtocolResolver
	Tags      Tagger
	Log       Sink

	// SkipInvalidPorts treats an unparsable destination port like a short
	// line (warn and skip). By default it aborts the whole parse.
	SkipInvalidPorts bool
}

// Parse reads r line by line and returns the aggregated counts. Lines may be
// of any length.
//
// Lines with fewer than MinFields fields are logged and skipped. A read
// error, non UTF-8 input or (unless SkipInvalidPorts is set) an invalid
// destination port aborts the parse and no result is returned.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	res := &Result{}
	br := bufio.NewReader(r)

	var lineno int
	for {
		raw, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("line %d: %w", lineno+1, err)
		}
		if len(raw) > 0 {
			lineno++
			if err := p.parseLine(res, lineno, raw); err != nil {
				return nil, err
			}
		}
		if err != nil {
			break
		}
	}

	return res, nil
}

func (p *Parser) parseLine(res *Result, lineno int, raw []byte) error {
	if !utf8.Valid(raw) {
		return fmt.Errorf("line %d: %w", lineno, ErrInvalidEncoding)
	}
	line := strings.TrimSpace(string(raw))

	rec, err := ParseLine(line)
	if err != nil {
		var portErr *PortError
		switch {
		case errors.Is(err, ErrTooFewFields):
			p.warn("skipping invalid line", "lineno", lineno, "line", line)
			res.Skipped++
			return nil
		case errors.As(err, &portErr):
			portErr.Line = lineno
			if !p.SkipInvalidPorts {
				return portErr
			}
			p.warn("skipping line with invalid destination port", "lineno", lineno, "line", line, "err", portErr.Err)
			res.Skipped++
			return nil
		default:
			return fmt.Errorf("line %d: %w", lineno, err)
		}
	}

	p.count(res, rec)
	return nil
}

// count attributes one record to both tables from the same combination.
func (p *Parser) count(res *Result, rec Record) {
	protocol, ok := p.Protocols.Name(rec.Protocol)
	if !ok {
		protocol = UnknownProtocol
	}
	c := Combination{Port: rec.DstPort, Protocol: protocol}
	res.Combinations.Inc(c)

	tag, ok := p.Tags.Tag(c.Port, c.Protocol)
	if !ok {
		tag = Untagged
	}
	res.Tags.Inc(tag)

	res.Counted++
}

func (p *Parser) warn(msg string, kv ...any) {
	if p.Log != nil {
		p.Log.Warn(msg, kv...)
	}
}
