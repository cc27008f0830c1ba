package reporting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-tester/reporter"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

// TableOptions controls the results table.
type TableOptions struct {
	Title string
	Color bool
}

// WriteTable renders a per-suite results table.
func WriteTable(w io.Writer, snap *reporter.Snapshot, opts TableOptions) error {
	if err := checkComplete(snap); err != nil {
		return err
	}

	t := table.NewWriter()
	title := opts.Title
	if title == "" {
		title = "Test Results"
	}
	t.SetTitle(fmt.Sprintf("%s (%ss)", title, formatSeconds(uint64(snap.Duration.Milliseconds()))))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Errored", "Disabled", "Status", "Message",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Errored", Align: text.AlignRight},
		{Name: "Disabled", Align: text.AlignRight},
		{Name: "Message", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, suite := range snap.Suites {
		suiteStatus := types.TestStatusPass
		switch {
		case suite.Errored > 0:
			suiteStatus = types.TestStatusError
		case suite.Failed > 0:
			suiteStatus = types.TestStatusFail
		case suite.Disabled == suite.Total() && suite.Total() > 0:
			suiteStatus = types.TestStatusDisabled
		}
		t.AppendRow(table.Row{
			"Suite",
			suite.Name,
			formatSeconds(uint64(suite.Duration.Milliseconds())) + "s",
			suite.Total(),
			suite.Passed,
			suite.Failed,
			suite.Errored,
			suite.Disabled,
			statusLabel(suiteStatus),
			"",
		})

		for i, res := range suite.Results {
			prefix := "├─"
			if i == len(suite.Results)-1 {
				prefix = "└─"
			}
			t.AppendRow(table.Row{
				"",
				fmt.Sprintf("%s %s", prefix, res.ID.Test),
				formatSeconds(res.DurationMS()) + "s",
				1,
				boolToInt(res.Status == types.TestStatusPass),
				boolToInt(res.Status == types.TestStatusFail),
				boolToInt(res.Status == types.TestStatusError),
				boolToInt(res.Status == types.TestStatusDisabled),
				statusLabel(res.Status),
				res.Message,
			})
		}
		t.AppendSeparator()
	}

	overall := types.TestStatusPass
	if snap.IsFailed() {
		overall = types.TestStatusFail
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatSeconds(uint64(snap.Duration.Milliseconds())) + "s",
		snap.Total,
		snap.Passed,
		snap.Failed,
		snap.Errored,
		snap.Disabled,
		statusLabel(overall),
		"",
	})

	switch {
	case !opts.Color:
		t.SetStyle(table.StyleLight)
	case snap.IsFailed():
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

func statusLabel(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "PASS"
	case types.TestStatusFail:
		return "FAIL"
	case types.TestStatusError:
		return "ERROR"
	case types.TestStatusDisabled:
		return "DISABLED"
	default:
		return "NOT RUN"
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
