package svg

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Pie renders a go-chart pie with one labelled slice per positive value.
// Non-positive values are skipped.
func Pie(width, height int, values []float64, labels []string, opts PieOpts) (template.HTML, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("svg: values required")
	}
	if len(values) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match values")
	}
	width, height = viewport(width, height)
	colors := opts.Colors
	if len(colors) == 0 {
		colors = Palette
	}

	total := 0.0
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return "", fmt.Errorf("svg: values must sum above zero")
	}

	slices := make([]chart.Value, 0, len(values))
	for i, v := range values {
		if v <= 0 {
			continue
		}
		slices = append(slices, chart.Value{
			Value: v,
			Label: fmt.Sprintf("%s (%.1f%%)", plainText(labels[i]), v/total*100),
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(strings.TrimPrefix(colors[i%len(colors)], "#")),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
				FontColor:   drawing.ColorFromHex(strings.TrimPrefix(fallback(opts.LabelColor, "#334155"), "#")),
				FontSize:    9,
			},
		})
	}

	pie := chart.PieChart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 12, Left: 12, Right: 12, Bottom: 12},
		},
		Values: slices,
	}
	var buf bytes.Buffer
	if err := pie.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("svg: render pie: %w", err)
	}

	label := fallback(opts.Title, "Pie chart")
	if opts.Description != "" {
		label += ": " + opts.Description
	}
	out := strings.Replace(buf.String(), "<svg ", fmt.Sprintf("<svg role=\"img\" aria-label=\"%s\" ", template.HTMLEscapeString(label)), 1)
	return template.HTML(out), nil
}

// plainText drops markup characters; slice labels are written into the SVG verbatim.
func plainText(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '&', '"':
			return -1
		}
		return r
	}, s)
}

// Placeholder renders an empty chart frame carrying a message.
func Placeholder(width, height int, title, message string) template.HTML {
	width, height = viewport(width, height)
	titleID := makeID(title, "empty-title")
	descID := makeID(title, "empty-desc")
	var b strings.Builder
	openSVG(&b, width, height, titleID, descID, fallback(title, "Chart"), fallback(message, "No data"))
	fmt.Fprintf(&b, "<rect x=\"1\" y=\"1\" width=\"%d\" height=\"%d\" fill=\"none\" stroke=\"#cbd5f5\" stroke-dasharray=\"4,4\"></rect>", width-2, height-2)
	fmt.Fprintf(&b, "<text x=\"%d\" y=\"%d\" fill=\"#64748b\" font-size=\"13\" text-anchor=\"middle\">%s</text>", width/2, height/2, template.HTMLEscapeString(fallback(message, "No data")))
	b.WriteString("</svg>")
	return template.HTML(b.String())
}
