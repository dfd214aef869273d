package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"flowlog-tagger/internal/flowlog"
)

// Write renders the tag table followed by the port/protocol table, both in
// first-seen order:
//
//	Tag Counts:
//
//	Tag		Count
//	sv_P1		2
//
//	Port/Protocol Combination Counts:
//
//	Port	Protocol	Count
//	443	tcp	1
func Write(w io.Writer, res *flowlog.Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "Tag Counts:\n\n")
	fmt.Fprint(bw, "Tag\t\tCount\n")
	res.Tags.Each(func(tag string, n int) {
		fmt.Fprintf(bw, "%s\t\t%d\n", tag, n)
	})

	fmt.Fprint(bw, "\nPort/Protocol Combination Counts:\n\n")
	fmt.Fprint(bw, "Port\tProtocol\tCount\n")
	res.Combinations.Each(func(c flowlog.Combination, n int) {
		fmt.Fprintf(bw, "%d\t%s\t%d\n", c.Port, c.Protocol, n)
	})

	// bufio.Writer keeps the first write error and returns it here.
	return bw.Flush()
}

// WriteFile writes the report to path. The report is staged in a temporary
// file next to path and renamed into place, so path either keeps its old
// content or holds the complete new report.
func WriteFile(path string, res *flowlog.Result) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := Write(tmp, res); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename report into place: %w", err)
	}

	return nil
}
