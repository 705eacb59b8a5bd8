package tui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	canvasPadding  = 2
	maxLabelLength = 12
)

// clusterPalette colours clusters by label; noise uses the normal style.
var clusterPalette = []lipgloss.Color{"39", "208", "118", "213", "226", "81", "203", "141"}

// canvasCell represents a single cell in the rendering grid with its character and styling.
type canvasCell struct {
	char  rune
	style lipgloss.Style
}

type canvasStyles struct {
	selectedDotStyle   lipgloss.Style
	selectedLabelStyle lipgloss.Style
	normalStyle        lipgloss.Style
	lineStyle          lipgloss.Style
	neighborDotStyle   lipgloss.Style
	neighborLabelStyle lipgloss.Style
}

func defineCanvasStyles() canvasStyles {
	return canvasStyles{
		selectedDotStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		selectedLabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("118")).Bold(true),
		normalStyle:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		lineStyle:          lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
		neighborDotStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
		neighborLabelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("228")).Bold(true),
	}
}

func clusterStyle(cluster int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(clusterPalette[cluster%len(clusterPalette)])
}

// renderCanvas draws every point of the first two output dimensions.
func (model Model) renderCanvas(canvasWidth, canvasHeight int) string {
	canvasGrid := newCanvasGrid(canvasWidth, canvasHeight)

	if len(model.points) == 0 {
		writeCentered(canvasGrid, "No points to show")
	} else {
		model.renderPointsOnCanvas(canvasGrid, defineCanvasStyles())
	}

	return canvasGridToString(canvasGrid)
}

func newCanvasGrid(canvasWidth, canvasHeight int) [][]canvasCell {
	canvasGrid := make([][]canvasCell, canvasHeight)
	for rowIndex := range canvasGrid {
		canvasGrid[rowIndex] = make([]canvasCell, canvasWidth)
		for columnIndex := range canvasGrid[rowIndex] {
			canvasGrid[rowIndex][columnIndex] = canvasCell{char: ' ', style: lipgloss.NewStyle()}
		}
	}
	return canvasGrid
}

func writeCentered(canvasGrid [][]canvasCell, message string) {
	if len(canvasGrid) == 0 {
		return
	}
	row := canvasGrid[len(canvasGrid)/2]
	startColumn := max(0, (len(row)-len([]rune(message)))/2)
	for offset, character := range []rune(message) {
		if startColumn+offset < len(row) {
			row[startColumn+offset] = canvasCell{char: character, style: lipgloss.NewStyle()}
		}
	}
}

// gridPoint is a point positioned on the canvas grid.
type gridPoint struct {
	rowIndex    int
	columnIndex int
	pointIndex  int
	isSelected  bool
	isNeighbor  bool
}

func (model Model) renderPointsOnCanvas(canvasGrid [][]canvasCell, styles canvasStyles) {
	canvasHeight := len(canvasGrid)
	canvasWidth := len(canvasGrid[0])

	gridPoints := model.convertPointsToGridPositions(canvasWidth, canvasHeight)

	if model.hasSelection() {
		selected := gridPoints[model.selectedIndex]
		for _, target := range gridPoints {
			if target.isNeighbor {
				drawLineOnCanvas(canvasGrid, selected.columnIndex, selected.rowIndex, target.columnIndex, target.rowIndex, styles.lineStyle)
			}
		}
	}

	// Highlighted points draw last so they end up on top
	sort.SliceStable(gridPoints, func(first, second int) bool {
		return renderPriority(gridPoints[first]) < renderPriority(gridPoints[second])
	})

	for _, point := range gridPoints {
		if model.focusMode && model.hasSelection() && !point.isSelected && !point.isNeighbor {
			continue
		}
		model.drawPoint(canvasGrid, point, styles)
	}
}

func renderPriority(point gridPoint) int {
	switch {
	case point.isSelected:
		return 2
	case point.isNeighbor:
		return 1
	default:
		return 0
	}
}

// convertPointsToGridPositions maps coordinates onto the canvas. Larger Y values
// are drawn higher up. The result is indexed like model.points.
func (model Model) convertPointsToGridPositions(canvasWidth, canvasHeight int) []gridPoint {
	minimumX, maximumX, minimumY, maximumY := model.calculatePointBounds()
	rangeX := maximumX - minimumX
	rangeY := maximumY - minimumY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}

	plotAreaWidth := max(1, canvasWidth-2*canvasPadding)
	plotAreaHeight := max(1, canvasHeight-2*canvasPadding)
	neighbors := model.neighborIndexSet()

	gridPoints := make([]gridPoint, len(model.points))
	for pointIndex, point := range model.points {
		columnIndex := canvasPadding + int((point.X-minimumX)/rangeX*float64(plotAreaWidth-1))
		rowIndex := canvasPadding + int((maximumY-point.Y)/rangeY*float64(plotAreaHeight-1))

		gridPoints[pointIndex] = gridPoint{
			rowIndex:    clampInt(rowIndex, 0, canvasHeight-1),
			columnIndex: clampInt(columnIndex, 0, canvasWidth-1),
			pointIndex:  pointIndex,
			isSelected:  pointIndex == model.selectedIndex,
			isNeighbor:  neighbors[pointIndex],
		}
	}
	return gridPoints
}

func (model Model) calculatePointBounds() (minimumX, maximumX, minimumY, maximumY float64) {
	minimumX, maximumX = model.points[0].X, model.points[0].X
	minimumY, maximumY = model.points[0].Y, model.points[0].Y

	for _, point := range model.points {
		minimumX = min(minimumX, point.X)
		maximumX = max(maximumX, point.X)
		minimumY = min(minimumY, point.Y)
		maximumY = max(maximumY, point.Y)
	}
	return
}

// drawPoint writes the marker and, when labels are on or the point is
// highlighted, its label.
func (model Model) drawPoint(canvasGrid [][]canvasCell, point gridPoint, styles canvasStyles) {
	canvasWidth := len(canvasGrid[0])
	data := model.points[point.pointIndex]

	markerSymbol := "○"
	markerStyle := styles.normalStyle
	labelStyle := styles.normalStyle
	if model.showClusters && data.Cluster >= 0 {
		markerSymbol = "●"
		markerStyle = clusterStyle(data.Cluster)
		labelStyle = markerStyle
	}

	markerStartColumn := point.columnIndex
	switch {
	case point.isSelected:
		markerSymbol = "[*]"
		markerStyle = styles.selectedDotStyle
		labelStyle = styles.selectedLabelStyle
		markerStartColumn = max(0, point.columnIndex-1)
	case point.isNeighbor:
		markerSymbol = "◆"
		markerStyle = styles.neighborDotStyle
		labelStyle = styles.neighborLabelStyle
	}

	markerRunes := []rune(markerSymbol)
	for offset, markerRune := range markerRunes {
		if markerStartColumn+offset < canvasWidth {
			canvasGrid[point.rowIndex][markerStartColumn+offset] = canvasCell{char: markerRune, style: markerStyle}
		}
	}

	if !model.showLabels && !point.isSelected && !point.isNeighbor {
		return
	}

	labelRunes := []rune(data.Label)
	if len(labelRunes) > maxLabelLength {
		labelRunes = labelRunes[:maxLabelLength]
	}
	labelStartColumn := markerStartColumn + len(markerRunes) + 1
	if labelStartColumn+len(labelRunes) > canvasWidth {
		// No room on the right: put the label left of the marker
		labelStartColumn = max(0, markerStartColumn-1-len(labelRunes))
	}
	for offset, labelRune := range labelRunes {
		if labelStartColumn+offset < canvasWidth {
			canvasGrid[point.rowIndex][labelStartColumn+offset] = canvasCell{char: labelRune, style: labelStyle}
		}
	}
}

func canvasGridToString(canvasGrid [][]canvasCell) string {
	var outputBuilder strings.Builder

	for rowIndex, gridRow := range canvasGrid {
		for _, cell := range gridRow {
			outputBuilder.WriteString(cell.style.Render(string(cell.char)))
		}
		if rowIndex < len(canvasGrid)-1 {
			outputBuilder.WriteString("\n")
		}
	}

	return outputBuilder.String()
}

// drawLineOnCanvas uses Bresenham's line algorithm to draw a dotted line between
// two cells. Cells that already hold something are left alone.
func drawLineOnCanvas(canvasGrid [][]canvasCell, startX, startY, endX, endY int, lineStyle lipgloss.Style) {
	deltaX := absoluteValue(endX - startX)
	deltaY := absoluteValue(endY - startY)

	stepDirectionX := 1
	if startX > endX {
		stepDirectionX = -1
	}
	stepDirectionY := 1
	if startY > endY {
		stepDirectionY = -1
	}

	errorTerm := deltaX - deltaY
	currentX, currentY := startX, startY

	for {
		if currentY >= 0 && currentY < len(canvasGrid) && currentX >= 0 && currentX < len(canvasGrid[0]) {
			if canvasGrid[currentY][currentX].char == ' ' {
				canvasGrid[currentY][currentX] = canvasCell{char: '·', style: lineStyle}
			}
		}

		if currentX == endX && currentY == endY {
			break
		}

		// Doubling the error keeps the arithmetic in integers
		doubledError := 2 * errorTerm
		if doubledError > -deltaY {
			errorTerm -= deltaY
			currentX += stepDirectionX
		}
		if doubledError < deltaX {
			errorTerm += deltaX
			currentY += stepDirectionY
		}
	}
}

func absoluteValue(number int) int {
	if number < 0 {
		return -number
	}
	return number
}

func clampInt(value, low, high int) int {
	return max(low, min(value, high))
}
