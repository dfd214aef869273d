package flowlog

import (
	"errors"
	"io"
	"os"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"

	"flowlog-tagger/internal/lookup"
)

type warning struct {
	msg string
	kv  []any
}

type recordingSink struct {
	warnings []warning
}

func (s *recordingSink) Warn(msg string, kv ...any) { s.warnings = append(s.warnings, warning{msg, kv}) }

var (
	testProtocols = lookup.ProtocolMap{"6": "tcp", "17": "udp"}
	testTags      = lookup.TagLookup{
		{Port: 443, Protocol: "tcp"}: "sv_P1",
		{Port: 68, Protocol: "udp"}:  "sv_P2",
		{Port: 80, Protocol: "tcp"}:  "sv_P1",
		{Port: 31, Protocol: "udp"}:  "SV_P3",
		{Port: 25, Protocol: "tcp"}:  "sv_P2",
	}
)

func line(port, proto string) string {
	return "2 123456789012 eni-0a1b2c3d 10.0.1.201 198.51.100.2 49153 " + port + " " + proto + " 25 20000 1620140761 1620140821 ACCEPT OK\n"
}

func newParser(sink Sink) *Parser {
	return &Parser{Protocols: testProtocols, Tags: testTags, Log: sink}
}

func tagsOf(res *Result) map[string]int {
	m := map[string]int{}
	res.Tags.Each(func(k string, n int) { m[k] = n })
	return m
}

func combinationsOf(res *Result) map[Combination]int {
	m := map[Combination]int{}
	res.Combinations.Each(func(k Combination, n int) { m[k] = n })
	return m
}

func checkTotals(t *testing.T, res *Result, counted int) {
	t.Helper()
	if res.Counted != counted {
		t.Errorf("Counted = %d, want %d", res.Counted, counted)
	}
	if got := res.Tags.Total(); got != counted {
		t.Errorf("sum(tags) = %d, want %d", got, counted)
	}
	if got := res.Combinations.Total(); got != counted {
		t.Errorf("sum(combinations) = %d, want %d", got, counted)
	}
}

func TestParseExample(t *testing.T) {
	p := &Parser{
		Protocols: lookup.ProtocolMap{"6": "tcp", "17": "udp"},
		Tags: lookup.TagLookup{
			{Port: 443, Protocol: "tcp"}: "sv_P1",
			{Port: 68, Protocol: "udp"}:  "sv_P2",
		},
	}

	res, err := p.Parse(strings.NewReader(line("443", "6") + line("68", "17") + line("80", "6")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantTags := map[string]int{"sv_P1": 1, "sv_P2": 1, Untagged: 1}
	if got := tagsOf(res); !reflect.DeepEqual(got, wantTags) {
		t.Errorf("tags = %v, want %v", got, wantTags)
	}
	wantCombos := map[Combination]int{{443, "tcp"}: 1, {68, "udp"}: 1, {80, "tcp"}: 1}
	if got := combinationsOf(res); !reflect.DeepEqual(got, wantCombos) {
		t.Errorf("combinations = %v, want %v", got, wantCombos)
	}
	checkTotals(t, res, 3)
}

func TestParseFile(t *testing.T) {
	f, err := os.Open("testdata/flowlog.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	sink := &recordingSink{}
	res, err := newParser(sink).Parse(f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantTags := []string{"sv_P1", Untagged, "sv_P2", "SV_P3"}
	if got := res.Tags.Keys(); !reflect.DeepEqual(got, wantTags) {
		t.Errorf("tag order = %v, want %v", got, wantTags)
	}
	for tag, n := range map[string]int{"sv_P1": 2, "sv_P2": 2, "SV_P3": 1, Untagged: 1} {
		if got := res.Tags.Get(tag); got != n {
			t.Errorf("tags[%s] = %d, want %d", tag, got, n)
		}
	}

	wantCombos := []Combination{{443, "tcp"}, {23, "tcp"}, {25, "tcp"}, {68, "udp"}, {80, "tcp"}, {31, "udp"}}
	if got := res.Combinations.Keys(); !reflect.DeepEqual(got, wantCombos) {
		t.Errorf("combination order = %v, want %v", got, wantCombos)
	}
	checkTotals(t, res, 6)
	if res.Skipped != 0 || len(sink.warnings) != 0 {
		t.Errorf("unexpected skips: %d, warnings %v", res.Skipped, sink.warnings)
	}
}

func TestParseSkipsShortLines(t *testing.T) {
	f, err := os.Open("testdata/flowlog_invalid_lines.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	sink := &recordingSink{}
	res, err := newParser(sink).Parse(f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := map[string]int{"sv_P1": 1, "sv_P2": 1, "SV_P3": 1}
	if got := tagsOf(res); !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
	checkTotals(t, res, 3)
	if res.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", res.Skipped)
	}
	if len(sink.warnings) != 3 {
		t.Fatalf("got %d warnings, want 3", len(sink.warnings))
	}

	first := sink.warnings[0]
	if !reflect.DeepEqual(first.kv, []any{"lineno", 2, "line", "2 123456789012 eni-4d3c2b1a 192.168.1.100"}) {
		t.Errorf("first warning kv = %v", first.kv)
	}
}

func TestParseUnknownProtocolAndUntagged(t *testing.T) {
	in := line("443", "99") + line("8443", "6") + line("443", "6")

	res, err := newParser(nil).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantCombos := map[Combination]int{{443, UnknownProtocol}: 1, {8443, "tcp"}: 1, {443, "tcp"}: 1}
	if got := combinationsOf(res); !reflect.DeepEqual(got, wantCombos) {
		t.Errorf("combinations = %v, want %v", got, wantCombos)
	}
	wantTags := map[string]int{Untagged: 2, "sv_P1": 1}
	if got := tagsOf(res); !reflect.DeepEqual(got, wantTags) {
		t.Errorf("tags = %v, want %v", got, wantTags)
	}
}

func TestParseInvalidPortIsFatal(t *testing.T) {
	in := line("443", "6") + line("http", "6") + line("80", "6")

	res, err := newParser(nil).Parse(strings.NewReader(in))
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}
	var portErr *PortError
	if !errors.As(err, &portErr) {
		t.Fatalf("err = %v, want *PortError", err)
	}
	if portErr.Line != 2 || portErr.Value != "http" {
		t.Errorf("PortError = %+v", portErr)
	}
}

func TestParseSkipInvalidPorts(t *testing.T) {
	in := line("443", "6") + line("http", "6") + line("80", "6")

	sink := &recordingSink{}
	p := newParser(sink)
	p.SkipInvalidPorts = true

	res, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	checkTotals(t, res, 2)
	if res.Skipped != 1 || len(sink.warnings) != 1 {
		t.Errorf("Skipped = %d, warnings = %d; want 1, 1", res.Skipped, len(sink.warnings))
	}
	if res.Tags.Get("sv_P1") != 2 {
		t.Errorf("tags[sv_P1] = %d, want 2", res.Tags.Get("sv_P1"))
	}
}

func TestParseLongLines(t *testing.T) {
	long := "2 123456789012 eni-0a1b2c3d 10.0.1.201 198.51.100.2 49153 443 6 " + strings.Repeat("x", 2<<20) + "\n"
	short := "2 123456789012 " + strings.Repeat("y", 2<<20) + "\n"
	in := line("80", "6") + long + short + line("443", "6")

	sink := &recordingSink{}
	res, err := newParser(sink).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	checkTotals(t, res, 3)
	if got := res.Tags.Get("sv_P1"); got != 3 {
		t.Errorf("tags[sv_P1] = %d, want 3", got)
	}
	if res.Skipped != 1 || len(sink.warnings) != 1 {
		t.Fatalf("Skipped = %d, warnings = %d; want 1, 1", res.Skipped, len(sink.warnings))
	}
	if lineno := sink.warnings[0].kv[1]; lineno != 3 {
		t.Errorf("warning lineno = %v, want 3", lineno)
	}
}

func TestParseLastLineWithoutNewline(t *testing.T) {
	in := line("80", "6") + strings.TrimSuffix(line("443", "6"), "\n")

	res, err := newParser(nil).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	checkTotals(t, res, 2)
}

func TestParseReadErrorHasLineNumber(t *testing.T) {
	r := io.MultiReader(strings.NewReader(line("80", "6")), iotest.ErrReader(errors.New("connection reset")))

	_, err := newParser(nil).Parse(r)
	if err == nil || !strings.Contains(err.Error(), "line 2: connection reset") {
		t.Fatalf("err = %v, want read error on line 2", err)
	}
}

func TestParseBinaryInputIsFatal(t *testing.T) {
	in := "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\xff\xfe"

	if _, err := newParser(nil).Parse(strings.NewReader(in)); !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("err = %v, want ErrInvalidEncoding", err)
	}
}

func TestParseEmpty(t *testing.T) {
	res, err := newParser(nil).Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Tags.Len() != 0 || res.Combinations.Len() != 0 {
		t.Errorf("expected empty tables, got %v / %v", tagsOf(res), combinationsOf(res))
	}
	checkTotals(t, res, 0)
}

func TestCountsZeroValue(t *testing.T) {
	var c Counts[string]
	if c.Get("x") != 0 || c.Len() != 0 || c.Total() != 0 {
		t.Fatalf("zero Counts not empty")
	}
	c.Inc("b")
	c.Inc("a")
	c.Inc("b")
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("Keys = %v", got)
	}
	if c.Get("b") != 2 || c.Total() != 3 {
		t.Errorf("b = %d, total = %d", c.Get("b"), c.Total())
	}
}
