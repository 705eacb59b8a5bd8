// Package plot renders the first two dimensions of a reduction as a scatter plot.
package plot

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	ErrTooFewDims  = errors.New("scatter plot needs at least 2 output dimensions")
	ErrRowMismatch = errors.New("label count does not match coordinate rows")
)

// maxLabeledPoints caps how many points get a text label before the plot turns
// into a blur of overlapping names.
const maxLabeledPoints = 40

var noiseColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}

// Options controls what the scatter shows.
type Options struct {
	Title       string
	ColumnNames []string // axis labels; defaults to "1" and "2"
	Clusters    []int    // optional cluster per row, -1 is noise
	Size        vg.Length
}

// Save writes a scatter of coordinate columns 1 and 2 to filename. The image
// format follows the extension (png, svg, pdf, eps, jpg, tif).
func Save(filename string, labels []string, coordinates mat.Matrix, options Options) error {
	p, err := New(labels, coordinates, options)
	if err != nil {
		return err
	}

	size := options.Size
	if size == 0 {
		size = 6 * vg.Inch
	}
	if err := p.Save(size, size, filename); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}

// New builds the scatter plot without saving it.
func New(labels []string, coordinates mat.Matrix, options Options) (*gonumplot.Plot, error) {
	rows, cols := coordinates.Dims()
	if cols < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewDims, cols)
	}
	if rows != len(labels) || (options.Clusters != nil && len(options.Clusters) != rows) {
		return nil, fmt.Errorf("%w: %d labels, %d rows", ErrRowMismatch, len(labels), rows)
	}

	p := gonumplot.New()
	p.Title.Text = options.Title
	p.X.Label.Text, p.Y.Label.Text = "1", "2"
	if len(options.ColumnNames) >= 2 {
		p.X.Label.Text, p.Y.Label.Text = options.ColumnNames[0], options.ColumnNames[1]
	}

	groups := groupByCluster(coordinates, options.Clusters)
	for _, group := range groups {
		s, err := plotter.NewScatter(group.points)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", group.cluster, err)
		}
		s.GlyphStyle.Radius = vg.Points(2.5)
		if group.cluster < 0 {
			s.GlyphStyle.Color = noiseColor
			s.GlyphStyle.Shape = draw.CrossGlyph{}
		} else {
			s.GlyphStyle.Color = plotutil.Color(group.cluster)
			s.GlyphStyle.Shape = draw.CircleGlyph{}
		}
		p.Add(s)
		if options.Clusters != nil {
			p.Legend.Add(group.name(), s)
		}
	}

	if rows <= maxLabeledPoints {
		names, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    firstTwoColumns(coordinates),
			Labels: labels,
		})
		if err != nil {
			return nil, fmt.Errorf("labels: %w", err)
		}
		p.Add(names)
	}

	return p, nil
}

type clusterGroup struct {
	cluster int
	points  plotter.XYs
}

func (g clusterGroup) name() string {
	if g.cluster < 0 {
		return "noise"
	}
	return fmt.Sprintf("cluster %d", g.cluster)
}

// groupByCluster splits the points into one series per cluster, in increasing
// cluster order with noise first. Without clusters everything is cluster 0.
func groupByCluster(coordinates mat.Matrix, clusters []int) []clusterGroup {
	rows, _ := coordinates.Dims()

	highest := 0
	for _, c := range clusters {
		highest = max(highest, c)
	}

	groups := make([]clusterGroup, highest+2)
	for i := range groups {
		groups[i].cluster = i - 1
	}
	for i := 0; i < rows; i++ {
		cluster := 0
		if clusters != nil {
			cluster = max(clusters[i], -1)
		}
		groups[cluster+1].points = append(groups[cluster+1].points, plotter.XY{X: coordinates.At(i, 0), Y: coordinates.At(i, 1)})
	}

	nonEmpty := groups[:0]
	for _, group := range groups {
		if len(group.points) > 0 {
			nonEmpty = append(nonEmpty, group)
		}
	}
	return nonEmpty
}

func firstTwoColumns(coordinates mat.Matrix) plotter.XYs {
	rows, _ := coordinates.Dims()
	xys := make(plotter.XYs, rows)
	for i := range xys {
		xys[i] = plotter.XY{X: coordinates.At(i, 0), Y: coordinates.At(i, 1)}
	}
	return xys
}
