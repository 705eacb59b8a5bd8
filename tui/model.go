// Package tui shows the result of a reduction in the terminal: an interactive
// scatter of the first two output dimensions and a styled run summary.
package tui

import (
	"fmt"
	"math"
	"sort"

	"github.com/alDuncanson/dimreduce/pipeline"
	"github.com/alDuncanson/dimreduce/projection"

	tea "github.com/charmbracelet/bubbletea"
)

// neighborCount is how many nearest points are highlighted around the selection.
const neighborCount = 5

// Model is the read-only viewer state. Points are never modified.
type Model struct {
	width, height int

	report  pipeline.Report
	points  []point2D
	version string

	activeTab     viewTab
	selectedIndex int
	listOffset    int
	showMetadata  bool
	showLabels    bool
	showClusters  bool
	focusMode     bool
}

// point2D is one record placed on the canvas.
type point2D struct {
	X, Y    float64
	Label   string
	Cluster int
	Coords  []float64
}

// NewModel creates a viewer for a finished run.
func NewModel(report pipeline.Report, version string) Model {
	return Model{
		width:         80,
		height:        24,
		report:        report,
		points:        pointsFromReport(report),
		version:       version,
		selectedIndex: -1,
		showMetadata:  true,
		showLabels:    len(report.Labels) <= 200,
		showClusters:  report.Clusters != nil,
	}
}

// pointsFromReport takes the first two output columns as canvas coordinates. A
// one-dimensional result is drawn along a horizontal line.
func pointsFromReport(report pipeline.Report) []point2D {
	if report.Coordinates == nil {
		return nil
	}
	rows, cols := report.Coordinates.Dims()

	points := make([]point2D, rows)
	for i := range points {
		coords := make([]float64, cols)
		for j := range coords {
			coords[j] = report.Coordinates.At(i, j)
		}
		points[i] = point2D{X: coords[0], Label: report.Labels[i], Cluster: projection.NoiseLabel, Coords: coords}
		if cols > 1 {
			points[i].Y = coords[1]
		}
		if report.Clusters != nil {
			points[i].Cluster = report.Clusters[i]
		}
	}
	return points
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return nil
}

// Update handles key presses and terminal resizes.
func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch message := msg.(type) {
	case tea.KeyMsg:
		return model.handleKeyPress(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
	}

	return model, nil
}

func (model Model) handleKeyPress(keyMessage tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch keyMessage.String() {
	case "ctrl+c", "esc", "q":
		return model, tea.Quit

	case "tab", "down", "j":
		model.selectNextPoint()

	case "shift+tab", "up", "k":
		model.selectPreviousPoint()

	case "/":
		model.showMetadata = !model.showMetadata

	case "C", "c":
		if model.report.Clusters != nil {
			model.showClusters = !model.showClusters
		}

	case "L", "l":
		model.showLabels = !model.showLabels

	case "F", "f":
		model.focusMode = !model.focusMode

	case "1":
		model.activeTab = tabVisualization

	case "2":
		model.activeTab = tabList

	case "3":
		model.activeTab = tabStats
	}

	return model, nil
}

func (model *Model) selectNextPoint() {
	if len(model.points) > 0 {
		model.selectedIndex = (model.selectedIndex + 1) % len(model.points)
	}
}

func (model *Model) selectPreviousPoint() {
	if len(model.points) > 0 {
		model.selectedIndex--
		if model.selectedIndex < 0 {
			model.selectedIndex = len(model.points) - 1
		}
	}
}

func (model Model) hasSelection() bool {
	return model.selectedIndex >= 0 && model.selectedIndex < len(model.points)
}

// neighbor is a point near the selection in the reduced space.
type neighbor struct {
	pointIndex int
	label      string
	distance   float64
}

// findNearestNeighbors returns the closest points to the selected one, measured
// over every output dimension, nearest first.
func (model Model) findNearestNeighbors(selectedPointIndex int, maxNeighbors int) []neighbor {
	if selectedPointIndex < 0 || selectedPointIndex >= len(model.points) {
		return nil
	}

	selected := model.points[selectedPointIndex].Coords
	neighborList := make([]neighbor, 0, len(model.points)-1)
	for pointIndex, candidate := range model.points {
		if pointIndex == selectedPointIndex {
			continue
		}
		neighborList = append(neighborList, neighbor{
			pointIndex: pointIndex,
			label:      candidate.Label,
			distance:   euclideanDistance(selected, candidate.Coords),
		})
	}

	sort.SliceStable(neighborList, func(first, second int) bool {
		return neighborList[first].distance < neighborList[second].distance
	})

	if len(neighborList) > maxNeighbors {
		neighborList = neighborList[:maxNeighbors]
	}
	return neighborList
}

func (model Model) neighborIndexSet() map[int]bool {
	indices := make(map[int]bool)
	for _, n := range model.findNearestNeighbors(model.selectedIndex, neighborCount) {
		indices[n.pointIndex] = true
	}
	return indices
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

func formatCoords(coords []float64) string {
	text := ""
	for i, c := range coords {
		if i > 0 {
			text += ", "
		}
		text += fmt.Sprintf("%.3f", c)
	}
	return text
}
