package svg

import "html/template"

// Renderer exposes the package chart functions as a value, for callers that
// accept chart renderers as interfaces.
type Renderer struct{}

// Line renders a line chart.
func (Renderer) Line(width, height int, series []float64, labels []string, opts LineOpts) (template.HTML, error) {
	return Line(width, height, series, labels, opts)
}

// Pie renders a pie chart.
func (Renderer) Pie(width, height int, values []float64, labels []string, opts PieOpts) (template.HTML, error) {
	return Pie(width, height, values, labels, opts)
}

// Histogram renders a histogram.
func (Renderer) Histogram(width, height int, counts []float64, labels []string, opts HistogramOpts) (template.HTML, error) {
	return Histogram(width, height, counts, labels, opts)
}
