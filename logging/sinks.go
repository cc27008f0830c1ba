package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-tester/reporter"
	"github.com/ethereum-optimism/infra/op-tester/reporting"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

// AllLogsFileSink writes all test results to a single all.log file
type AllLogsFileSink struct {
	logger *FileLogger
}

// Consume appends a block describing the result to all.log
func (s *AllLogsFileSink) Consume(result types.TestResult) error {
	writer, err := s.logger.getAsyncWriter(s.logger.Path(AllLogsFilename))
	if err != nil {
		return err
	}

	var content strings.Builder
	fmt.Fprintf(&content, "┌─────────────────────────────────────────────────────────────────────┐\n")
	fmt.Fprintf(&content, "│ TEST: %-64s │\n", truncateString(result.ID.String(), 64))
	fmt.Fprintf(&content, "├─────────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&content, "│ Status:   %-62s │\n", result.Status)
	fmt.Fprintf(&content, "│ Duration: %-62s │\n", result.Duration)
	fmt.Fprintf(&content, "└─────────────────────────────────────────────────────────────────────┘\n")
	if result.Message != "" {
		fmt.Fprintf(&content, "%s\n", indentText(result.Message, "  "))
	}
	content.WriteString("\n")

	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(*reporter.Snapshot) error {
	return nil
}

// JSONLinesSink streams results as JSON lines for machine consumption.
type JSONLinesSink struct {
	logger *FileLogger
}

// ResultRecord is one line of results.jsonl.
type ResultRecord struct {
	Time       time.Time `json:"time"`
	Suite      string    `json:"suite"`
	Test       string    `json:"test"`
	Status     string    `json:"status"`
	DurationMS uint64    `json:"duration_ms"`
	Message    string    `json:"message,omitempty"`
}

// Consume appends the result as one JSON object
func (s *JSONLinesSink) Consume(result types.TestResult) error {
	writer, err := s.logger.getAsyncWriter(s.logger.Path(JSONLinesFilename))
	if err != nil {
		return err
	}

	line, err := json.Marshal(ResultRecord{
		Time:       time.Now().UTC(),
		Suite:      result.ID.Suite,
		Test:       result.ID.Test,
		Status:     string(result.Status),
		DurationMS: result.DurationMS(),
		Message:    result.Message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal result %s: %w", result.ID, err)
	}
	return writer.Write(append(line, '\n'))
}

// Complete is a no-op for JSONLinesSink
func (s *JSONLinesSink) Complete(*reporter.Snapshot) error {
	return nil
}

// FailedTestFileSink writes a dedicated file for every failed or errored test
type FailedTestFileSink struct {
	logger *FileLogger
}

// Consume writes the message of a failed or errored test to failed/
func (s *FailedTestFileSink) Consume(result types.TestResult) error {
	if result.Status != types.TestStatusFail && result.Status != types.TestStatusError {
		return nil
	}

	var content strings.Builder
	fmt.Fprintf(&content, "Test:     %s\n", result.ID)
	fmt.Fprintf(&content, "Status:   %s\n", result.Status)
	fmt.Fprintf(&content, "Duration: %s\n", result.Duration)
	fmt.Fprintf(&content, "\n%s\n", result.Message)

	path := s.logger.FailedTestPath(result.ID)
	if err := os.WriteFile(path, []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Complete is a no-op for FailedTestFileSink
func (s *FailedTestFileSink) Complete(*reporter.Snapshot) error {
	return nil
}

// SummarySink writes the uncolored console summary and the results table
type SummarySink struct {
	logger *FileLogger
}

// Consume is a no-op for SummarySink
func (s *SummarySink) Consume(types.TestResult) error {
	return nil
}

// Complete renders summary.log from the final snapshot
func (s *SummarySink) Complete(snap *reporter.Snapshot) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Run ID: %s\n\n", s.logger.RunID())
	if err := reporting.WriteTable(&buf, snap, reporting.TableOptions{Title: "Test Results"}); err != nil {
		return err
	}
	buf.WriteString("\n")
	if err := reporting.WriteSummary(&buf, snap, reporting.SummaryOptions{Color: false}); err != nil {
		return err
	}

	path := s.logger.Path(SummaryFilename)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// JUnitSink writes junit.xml into the run directory
type JUnitSink struct {
	logger *FileLogger
}

// Consume is a no-op for JUnitSink
func (s *JUnitSink) Consume(types.TestResult) error {
	return nil
}

// Complete renders junit.xml from the final snapshot
func (s *JUnitSink) Complete(snap *reporter.Snapshot) error {
	return reporting.WriteJUnitFile(s.logger.Path(JUnitFilename), snap)
}

// indentText adds indentation to each line of text for better readability
func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// truncateString truncates a string to the specified max length
// and adds an ellipsis if needed
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
