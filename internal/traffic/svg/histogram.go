package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Histogram renders contiguous bars, one per bin. labels name the bins and
// must match counts.
func Histogram(width, height int, counts []float64, labels []string, opts HistogramOpts) (template.HTML, error) {
	if len(counts) == 0 {
		return "", fmt.Errorf("svg: bins required")
	}
	if len(counts) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match bins")
	}
	width, height = viewport(width, height)
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}
	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")
	barColor := fallback(opts.BarColor, "#0ea5e9")

	chartWidth := float64(width) - 2*padding
	chartHeight := float64(height) - 2*padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}

	_, maxVal := bounds(counts)
	if maxVal <= 0 {
		maxVal = 1
	}
	scale := chartHeight / maxVal
	barWidth := chartWidth / float64(len(counts))
	bottom := padding + chartHeight

	titleID := makeID(opts.Title, "hist-title")
	descID := makeID(opts.Title, "hist-desc")

	var b strings.Builder
	openSVG(&b, width, height, titleID, descID, fallback(opts.Title, "Histogram"), fallback(opts.Description, "Value distribution"))
	writeGrid(&b, padding, chartWidth, chartHeight, 0, maxVal, tickCount, axisColor, gridColor)
	writeAxes(&b, padding, chartWidth, chartHeight, axisColor)

	for i, count := range counts {
		h := count * scale
		if h < 0 {
			h = 0
		}
		x := padding + float64(i)*barWidth
		fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" stroke=\"#ffffff\" stroke-width=\"0.5\"><title>%s: %s</title></rect>",
			x, bottom-h, barWidth, h, barColor, template.HTMLEscapeString(labels[i]), formatTick(count))
	}

	every := labelStride(len(labels), opts.MaxLabels)
	for i, label := range labels {
		if i%every != 0 {
			continue
		}
		center := padding + float64(i)*barWidth + barWidth/2
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", center, bottom+14, axisColor, template.HTMLEscapeString(label))
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
