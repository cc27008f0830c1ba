package reporting

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/jstemmer/go-junit-report/v2/junit"

	"github.com/ethereum-optimism/infra/op-tester/reporter"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

// BuildJUnit converts a finished snapshot to the JUnit document model. Suites
// and test cases keep registration order.
func BuildJUnit(snap *reporter.Snapshot) (*junit.Testsuites, error) {
	if err := checkComplete(snap); err != nil {
		return nil, err
	}

	doc := &junit.Testsuites{}
	var totalMS uint64
	for i, suite := range snap.Suites {
		ts := junit.Testsuite{
			Name: suite.Name,
			ID:   i,
		}

		var suiteMS uint64
		for _, res := range suite.Results {
			ms := res.DurationMS()
			suiteMS += ms
			ts.AddTestcase(testCase(res, ms))
		}
		ts.Time = formatSeconds(suiteMS)
		totalMS += suiteMS
		doc.AddSuite(ts)
	}
	doc.Time = formatSeconds(totalMS)
	return doc, nil
}

func testCase(res types.TestResult, ms uint64) junit.Testcase {
	tc := junit.Testcase{
		Classname: res.ID.Suite,
		Name:      res.ID.Test,
		Time:      formatSeconds(ms),
	}
	switch res.Status {
	case types.TestStatusFail:
		msg := xmlText(res.Message)
		tc.Failure = &junit.Result{Message: msg, Type: "failure", Data: msg}
	case types.TestStatusError:
		msg := xmlText(res.Message)
		tc.Error = &junit.Result{Message: msg, Type: "error", Data: msg}
	case types.TestStatusDisabled:
		tc.Skipped = &junit.Result{Message: "disabled"}
	}
	return tc
}

// xmlText drops terminal escapes and replaces runes XML 1.0 cannot carry.
func xmlText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
			return '\uFFFD'
		}
		return r
	}, stripansi.Strip(s))
}

// WriteJUnit writes the JUnit XML report of a finished run to w.
func WriteJUnit(w io.Writer, snap *reporter.Snapshot) error {
	doc, err := BuildJUnit(snap)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := doc.WriteXML(&buf); err != nil {
		return fmt.Errorf("failed to encode junit report: %w", err)
	}

	_, err = w.Write(buf.Bytes())
	return err
}

// WriteJUnitFile writes the JUnit XML report to path, creating parent
// directories as needed.
func WriteJUnitFile(path string, snap *reporter.Snapshot) error {
	var buf bytes.Buffer
	if err := WriteJUnit(&buf, snap); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return nil
}
