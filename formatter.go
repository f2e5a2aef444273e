package pkgacceptor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(result *types.RunResult) error
}

// ConsoleResultFormatter renders results as a table.
type ConsoleResultFormatter struct {
	out io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(out io.Writer) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{out: out}
}

// FormatResults formats and displays the test results.
func (f *ConsoleResultFormatter) FormatResults(result *types.RunResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Package Testing Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Skipped", "Status", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	t.AppendRow(table.Row{
		"Package",
		result.Package.String(),
		formatDuration(result.Duration),
		"-",
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Skipped,
		getResultString(result.Status),
		"",
	})

	for i, test := range result.Tests {
		prefix := "├──"
		if i == len(result.Tests)-1 {
			prefix = "└──"
		}
		t.AppendRow(table.Row{
			"Test",
			fmt.Sprintf("%s %s", prefix, test.Descriptor),
			formatDuration(test.Duration),
			"1",
			boolToInt(test.Status == types.TestStatusPass),
			boolToInt(test.Status == types.TestStatusFail),
			boolToInt(test.Status == types.TestStatusSkip),
			getResultString(test.Status),
			extractKeyErrorMessage(test.Error),
		})
	}

	switch result.Status {
	case types.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.TestStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Skipped,
		getResultString(result.Status),
		"",
	})

	t.Render()
	return nil
}

// extractKeyErrorMessage keeps the first line of an error for display
func extractKeyErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a string representing the test result
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
