package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/alDuncanson/dimreduce/pipeline"
	"github.com/alDuncanson/dimreduce/projection"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testReport() pipeline.Report {
	return pipeline.Report{
		Method:                 projection.MethodPCA,
		Input:                  "points.tsv",
		Rows:                   3,
		InputDims:              4,
		OutputDims:             2,
		ColumnNames:            []string{"PC1", "PC2"},
		ExplainedVarianceRatio: []float64{0.75, 0.2},
		Labels:                 []string{"alpha", "beta", "gamma"},
		Coordinates:            mat.NewDense(3, 2, []float64{0, 0, 1, 0, 10, 10}),
		Clusters:               []int{0, 0, projection.NoiseLabel},
		ReduceDuration:         1500 * time.Microsecond,
	}
}

func runeKey(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

func press(t *testing.T, model Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := model.Update(msg)
		var ok bool
		model, ok = next.(Model)
		require.True(t, ok)
	}
	return model
}

func TestNewModel(t *testing.T) {
	model := NewModel(testReport(), "v1.0.0")

	require.Len(t, model.points, 3)
	assert.Equal(t, "gamma", model.points[2].Label)
	assert.Equal(t, 10.0, model.points[2].X)
	assert.Equal(t, 10.0, model.points[2].Y)
	assert.Equal(t, projection.NoiseLabel, model.points[2].Cluster)
	assert.Equal(t, -1, model.selectedIndex)
	assert.True(t, model.showLabels)
	assert.True(t, model.showClusters)
	assert.Nil(t, model.Init())
}

func TestNewModelOneDimension(t *testing.T) {
	report := testReport()
	report.Coordinates = mat.NewDense(3, 1, []float64{1, 2, 3})
	report.Clusters = nil

	model := NewModel(report, "dev")
	require.Len(t, model.points, 3)
	assert.Equal(t, 0.0, model.points[1].Y)
	assert.Equal(t, projection.NoiseLabel, model.points[1].Cluster)
	assert.False(t, model.showClusters)
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{runeKey("q"), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		_, cmd := NewModel(testReport(), "dev").Update(key)
		require.NotNil(t, cmd, key.String())
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestSelectionWraps(t *testing.T) {
	model := NewModel(testReport(), "dev")

	model = press(t, model, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, model.selectedIndex)

	model = press(t, model, runeKey("j"), tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, model.selectedIndex)

	model = press(t, model, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 2, model.selectedIndex)

	model = press(t, NewModel(testReport(), "dev"), runeKey("k"))
	assert.Equal(t, 2, model.selectedIndex)
}

func TestToggles(t *testing.T) {
	model := NewModel(testReport(), "dev")

	model = press(t, model, runeKey("/"), runeKey("l"), runeKey("f"), runeKey("c"))
	assert.False(t, model.showMetadata)
	assert.False(t, model.showLabels)
	assert.True(t, model.focusMode)
	assert.False(t, model.showClusters)

	report := testReport()
	report.Clusters = nil
	model = press(t, NewModel(report, "dev"), runeKey("C"))
	assert.False(t, model.showClusters)
}

func TestTabs(t *testing.T) {
	model := NewModel(testReport(), "dev")

	model = press(t, model, runeKey("2"))
	assert.Equal(t, tabList, model.activeTab)
	model = press(t, model, runeKey("3"))
	assert.Equal(t, tabStats, model.activeTab)
	model = press(t, model, runeKey("1"))
	assert.Equal(t, tabVisualization, model.activeTab)
}

func TestWindowSize(t *testing.T) {
	model := press(t, NewModel(testReport(), "dev"), tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, model.width)
	assert.Equal(t, 40, model.height)
}

func TestFindNearestNeighbors(t *testing.T) {
	model := NewModel(testReport(), "dev")

	nearest := model.findNearestNeighbors(0, 5)
	require.Len(t, nearest, 2)
	assert.Equal(t, "beta", nearest[0].label)
	assert.InDelta(t, 1.0, nearest[0].distance, 1e-12)
	assert.Equal(t, "gamma", nearest[1].label)

	assert.Len(t, model.findNearestNeighbors(0, 1), 1)
	assert.Nil(t, model.findNearestNeighbors(-1, 5))
}

func TestFormatCoords(t *testing.T) {
	assert.Equal(t, "1.000, -0.500", formatCoords([]float64{1, -0.5}))
	assert.Equal(t, "", formatCoords(nil))
}

func TestView(t *testing.T) {
	model := press(t, NewModel(testReport(), "v1.2.3"), tea.WindowSizeMsg{Width: 100, Height: 30})

	view := model.View()
	assert.Contains(t, view, "dimreduce")
	assert.Contains(t, view, "Visualization")
	assert.Contains(t, view, "alpha")
	assert.Contains(t, view, "gamma")
	assert.Contains(t, view, "v1.2.3")
	assert.Contains(t, view, "clusters on")

	selected := press(t, model, tea.KeyMsg{Type: tea.KeyDown})
	view = selected.View()
	assert.Contains(t, view, "[*]")
	assert.Contains(t, view, "Nearest")

	list := press(t, model, runeKey("2")).View()
	assert.Contains(t, list, "0.000, 0.000")

	stats := press(t, model, runeKey("3")).View()
	assert.Contains(t, stats, "Run summary")
}

func TestViewEmpty(t *testing.T) {
	model := NewModel(pipeline.Report{Method: projection.MethodUMAP}, "dev")
	assert.Contains(t, model.View(), "No points to show")
}

func TestRenderSummary(t *testing.T) {
	summary := RenderSummary(testReport())

	assert.Contains(t, summary, "pca")
	assert.Contains(t, summary, "points.tsv")
	assert.Contains(t, summary, "stdout")
	assert.Contains(t, summary, "4 → 2")
	assert.Contains(t, summary, "PC1 75.0%")
	assert.Contains(t, summary, "PC2 20.0%")
	assert.Contains(t, summary, "95.0%")
	assert.Contains(t, summary, "1 (1 noise)")
	assert.Contains(t, summary, "1.5ms")
}

func TestRenderSummaryWithoutExtras(t *testing.T) {
	report := testReport()
	report.Method = projection.MethodUMAP
	report.Output = "out.tsv"
	report.ExplainedVarianceRatio = nil
	report.Clusters = nil

	summary := RenderSummary(report)
	assert.Contains(t, summary, "out.tsv")
	assert.NotContains(t, summary, "stdout")
	assert.NotContains(t, summary, "Variance")
	assert.NotContains(t, summary, "Clusters")
}

func TestOverlayAt(t *testing.T) {
	base := "aaaa\naaaa\naaaa"

	assert.Equal(t, "aaaa\naXXa\naaaa", overlayAt(base, "XX", 1, 1))
	assert.Equal(t, "XXaa\naaaa\naaaa", overlayAt(base, "XX", -5, -5))
	assert.Equal(t, "aaaa\naaaa\naaXX", overlayAt(base, "XX", 10, 10))
	assert.Equal(t, "big", overlayAt("ab", "big", 0, 0))
}

func TestDrawLineOnCanvas(t *testing.T) {
	grid := newCanvasGrid(5, 5)
	grid[2][2] = canvasCell{char: 'x', style: lipgloss.NewStyle()}

	drawLineOnCanvas(grid, 0, 0, 4, 4, lipgloss.NewStyle())

	lines := strings.Split(canvasGridToString(grid), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "·    ", lines[0])
	assert.Equal(t, "  x  ", lines[2])
	assert.Equal(t, "    ·", lines[4])
}

func TestDrawPointLabelAtRightEdge(t *testing.T) {
	model := NewModel(testReport(), "dev")
	grid := newCanvasGrid(12, 1)

	model.drawPoint(grid, gridPoint{rowIndex: 0, columnIndex: 10, pointIndex: 2}, defineCanvasStyles())
	assert.Equal(t, "    gamma ○ ", canvasGridToString(grid))

	grid = newCanvasGrid(12, 1)
	model.drawPoint(grid, gridPoint{rowIndex: 0, columnIndex: 1, pointIndex: 2}, defineCanvasStyles())
	assert.Equal(t, " ○ gamma    ", canvasGridToString(grid))
}

func TestConvertPointsToGridPositions(t *testing.T) {
	model := NewModel(testReport(), "dev")

	positions := model.convertPointsToGridPositions(20, 10)
	require.Len(t, positions, 3)
	assert.Equal(t, canvasPadding, positions[0].columnIndex)
	assert.Equal(t, 10-canvasPadding-1, positions[0].rowIndex)
	assert.Equal(t, 20-canvasPadding-1, positions[2].columnIndex)
	assert.Equal(t, canvasPadding, positions[2].rowIndex)
}
