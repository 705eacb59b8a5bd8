package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/alDuncanson/dimreduce/pipeline"

	"github.com/charmbracelet/lipgloss"
)

var (
	summaryHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF87D7"))
	summaryLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(14)
	summaryValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
)

// RenderSummary formats a finished run as a small table.
func RenderSummary(report pipeline.Report) string {
	output := report.Output
	if output == "" {
		output = "stdout"
	}

	var b strings.Builder
	b.WriteString(summaryHeaderStyle.Render("Run summary"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(summaryLabelStyle.Render(label))
		b.WriteString(summaryValueStyle.Render(value))
		b.WriteByte('\n')
	}

	row("Method", string(report.Method))
	row("Input", report.Input)
	row("Output", output)
	row("Rows", fmt.Sprintf("%d", report.Rows))
	row("Dimensions", fmt.Sprintf("%d → %d", report.InputDims, report.OutputDims))

	if len(report.ExplainedVarianceRatio) > 0 {
		var total float64
		parts := make([]string, len(report.ExplainedVarianceRatio))
		for i, ratio := range report.ExplainedVarianceRatio {
			name := fmt.Sprintf("PC%d", i+1)
			if i < len(report.ColumnNames) {
				name = report.ColumnNames[i]
			}
			parts[i] = fmt.Sprintf("%s %.1f%%", name, ratio*100)
			total += ratio
		}
		row("Variance", strings.Join(parts, ", "))
		row("Total", fmt.Sprintf("%.1f%%", total*100))
	}

	if report.Clusters != nil {
		noise := 0
		for _, label := range report.Clusters {
			if label < 0 {
				noise++
			}
		}
		row("Clusters", fmt.Sprintf("%d (%d noise)", report.NumClusters(), noise))
	}

	row("Load", formatDuration(report.LoadDuration))
	row("Reduce", formatDuration(report.ReduceDuration))
	row("Write", formatDuration(report.WriteDuration))

	return strings.TrimRight(b.String(), "\n")
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}
