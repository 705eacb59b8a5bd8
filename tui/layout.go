package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/truncate"
)

const (
	overlayPanelWidth  = 44
	overlayPanelHeight = 16
	minCanvasWidth     = 40
	minCanvasHeight    = 10
	tabBarHeight       = 1
	statusBarHeight    = 1
	borderSize         = 2
)

type viewTab int

const (
	tabVisualization viewTab = iota
	tabList
	tabStats
)

type layoutDimensions struct {
	totalWidth   int
	totalHeight  int
	canvasWidth  int
	canvasHeight int
}

func (model Model) calculateLayout() layoutDimensions {
	marginX := 2
	marginY := 2

	totalWidth := model.width - marginX
	totalHeight := model.height - marginY

	return layoutDimensions{
		totalWidth:   totalWidth,
		totalHeight:  totalHeight,
		canvasWidth:  max(totalWidth-borderSize, minCanvasWidth),
		canvasHeight: max(totalHeight-tabBarHeight-statusBarHeight, minCanvasHeight),
	}
}

type styles struct {
	title       lipgloss.Style
	canvas      lipgloss.Style
	overlay     lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	tabBar      lipgloss.Style
	statusBar   lipgloss.Style
	header      lipgloss.Style
	label       lipgloss.Style
	value       lipgloss.Style
}

func newStyles() styles {
	accentColor := lipgloss.Color("#FF87D7")
	borderColor := lipgloss.Color("#5F5FAF")
	canvasBorderColor := lipgloss.Color("#FF8700")
	dimColor := lipgloss.Color("#6C6C6C")
	bgColor := lipgloss.Color("#303030")

	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor),

		canvas: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(canvasBorderColor),

		overlay: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Background(bgColor).
			Padding(0, 1),

		tabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			Padding(0, 1),

		tabInactive: lipgloss.NewStyle().
			Foreground(dimColor).
			Padding(0, 1),

		tabBar: lipgloss.NewStyle().
			Foreground(dimColor),

		statusBar: lipgloss.NewStyle().
			Foreground(dimColor),

		header: lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		label:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		value:  lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
	}
}

// View renders the tab bar, the active tab and the status bar.
func (model Model) View() string {
	s := newStyles()
	layout := model.calculateLayout()

	var content string
	switch model.activeTab {
	case tabList:
		content = model.renderList(s, layout)
	case tabStats:
		content = s.canvas.
			Width(layout.canvasWidth - borderSize).
			Height(layout.canvasHeight - borderSize).
			Render(RenderSummary(model.report))
	default:
		content = model.renderContentArea(s, layout)
	}

	return lipgloss.NewStyle().Padding(1, 1).Render(lipgloss.JoinVertical(lipgloss.Left,
		model.renderTabBar(s, layout.totalWidth),
		content,
		model.renderStatusBar(s, layout.totalWidth),
	))
}

func (model Model) renderTabBar(s styles, width int) string {
	tabs := []struct {
		name string
		tab  viewTab
	}{
		{"Visualization", tabVisualization},
		{"List", tabList},
		{"Stats", tabStats},
	}

	var parts []string
	for _, t := range tabs {
		style := s.tabInactive
		if t.tab == model.activeTab {
			style = s.tabActive
		}
		parts = append(parts, style.Render(t.name))
	}

	tabRow := strings.Join(parts, s.tabBar.Render(" │ "))
	title := s.title.Render("dimreduce · " + string(model.report.Method))

	gap := max(1, width-lipgloss.Width(tabRow)-lipgloss.Width(title))
	return tabRow + strings.Repeat(" ", gap) + title
}

func (model Model) renderContentArea(s styles, layout layoutDimensions) string {
	canvasInnerWidth := layout.canvasWidth - borderSize
	canvasInnerHeight := layout.canvasHeight - borderSize

	canvasBox := s.canvas.
		Width(canvasInnerWidth).
		Height(canvasInnerHeight).
		Render(model.renderCanvas(canvasInnerWidth, canvasInnerHeight))

	if model.showMetadata && model.hasSelection() {
		canvasBox = model.overlayMetadataPanel(canvasBox, s, layout)
	}

	return canvasBox
}

// renderList shows one row per point, scrolled so the selection stays visible.
func (model Model) renderList(s styles, layout layoutDimensions) string {
	innerWidth := layout.canvasWidth - borderSize
	innerHeight := layout.canvasHeight - borderSize

	offset := model.listOffset
	if model.hasSelection() {
		offset = max(0, model.selectedIndex-innerHeight+1)
	}

	var lines []string
	for i := offset; i < len(model.points) && len(lines) < innerHeight; i++ {
		point := model.points[i]
		line := fmt.Sprintf("%-*s %s", maxLabelLength, truncate.StringWithTail(point.Label, maxLabelLength, "…"), formatCoords(point.Coords))
		if point.Cluster >= 0 {
			line += fmt.Sprintf("  #%d", point.Cluster)
		}
		line = truncate.String(line, uint(innerWidth))
		if i == model.selectedIndex {
			line = s.header.Render(line)
		}
		lines = append(lines, line)
	}

	return s.canvas.Width(innerWidth).Height(innerHeight).Render(strings.Join(lines, "\n"))
}

func (model Model) overlayMetadataPanel(base string, s styles, layout layoutDimensions) string {
	panelInnerWidth := overlayPanelWidth - 4
	panelInnerHeight := min(overlayPanelHeight, layout.canvasHeight-4)

	panel := s.overlay.
		Width(panelInnerWidth).
		Height(panelInnerHeight).
		Render(model.renderMetadata(s, panelInnerWidth, panelInnerHeight))

	return overlayAt(base, panel, layout.canvasWidth-overlayPanelWidth-1, 1)
}

// renderMetadata describes the selected point: label, coordinates, cluster and
// nearest neighbors in the reduced space.
func (model Model) renderMetadata(s styles, panelWidth, panelHeight int) string {
	if !model.hasSelection() {
		return ""
	}
	selected := model.points[model.selectedIndex]

	contentLines := []string{
		s.header.Render("Selected"),
		s.value.Render(truncate.StringWithTail(selected.Label, uint(panelWidth), "…")),
		"",
		s.label.Render("Row: ") + s.value.Render(fmt.Sprintf("%d of %d", model.selectedIndex+1, len(model.points))),
		s.label.Render("Coords: ") + s.value.Render(truncate.StringWithTail(formatCoords(selected.Coords), uint(panelWidth-8), "…")),
	}
	if model.report.Clusters != nil {
		cluster := "noise"
		if selected.Cluster >= 0 {
			cluster = fmt.Sprintf("%d", selected.Cluster)
		}
		contentLines = append(contentLines, s.label.Render("Cluster: ")+s.value.Render(cluster))
	}
	contentLines = append(contentLines, "")

	if nearest := model.findNearestNeighbors(model.selectedIndex, neighborCount); len(nearest) > 0 {
		contentLines = append(contentLines, s.header.Render("Nearest"))
		for _, n := range nearest {
			contentLines = append(contentLines, fmt.Sprintf("%7.3f %s", n.distance, truncate.StringWithTail(n.label, uint(panelWidth-8), "…")))
		}
	}

	for len(contentLines) < panelHeight {
		contentLines = append(contentLines, "")
	}
	if len(contentLines) > panelHeight {
		contentLines = contentLines[:panelHeight]
	}

	return strings.Join(contentLines, "\n")
}

// overlayAt draws overlay on top of base with its top-left corner at (x, y),
// clamped so it stays inside base. Both may contain ANSI escape sequences.
func overlayAt(base, overlay string, x, y int) string {
	bgLines, bgWidth := getLines(base)
	fgLines, fgWidth := getLines(overlay)
	bgHeight := len(bgLines)
	fgHeight := len(fgLines)

	if fgWidth >= bgWidth && fgHeight >= bgHeight {
		return overlay
	}

	x = clampInt(x, 0, max(0, bgWidth-fgWidth))
	y = clampInt(y, 0, max(0, bgHeight-fgHeight))

	var b strings.Builder
	for i, bgLine := range bgLines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i < y || i >= y+fgHeight {
			b.WriteString(bgLine)
			continue
		}

		pos := 0
		if x > 0 {
			left := truncate.String(bgLine, uint(x))
			pos = ansi.StringWidth(left)
			b.WriteString(left)
			if pos < x {
				b.WriteString(strings.Repeat(" ", x-pos))
				pos = x
			}
		}

		fgLine := fgLines[i-y]
		b.WriteString(fgLine)
		pos += ansi.StringWidth(fgLine)

		right := ansi.TruncateLeft(bgLine, pos, "")
		lineWidth := ansi.StringWidth(bgLine)
		rightWidth := ansi.StringWidth(right)
		if rightWidth <= lineWidth-pos {
			b.WriteString(strings.Repeat(" ", lineWidth-rightWidth-pos))
		}
		b.WriteString(right)
	}

	return b.String()
}

func getLines(s string) ([]string, int) {
	lines := strings.Split(s, "\n")
	widest := 0
	for _, l := range lines {
		widest = max(widest, ansi.StringWidth(l))
	}
	return lines, widest
}

func (model Model) renderStatusBar(s styles, width int) string {
	help := "↑↓: select │ /: info │ L: labels │ F: focus │ 1-3: tabs │ q: quit"
	if model.report.Clusters != nil {
		clusterStatus := "off"
		if model.showClusters {
			clusterStatus = "on"
		}
		help = "↑↓: select │ /: info │ L: labels │ F: focus │ C: clusters " + clusterStatus + " │ 1-3: tabs │ q: quit"
	}

	padding := max(1, width-lipgloss.Width(help)-lipgloss.Width(model.version))
	return s.statusBar.Render(help + strings.Repeat(" ", padding) + model.version)
}
