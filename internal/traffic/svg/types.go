package svg

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	StrokeColor string
	FillColor   string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
	MaxLabels   int
}

// HistogramOpts customises the histogram renderer.
type HistogramOpts struct {
	Title       string
	Description string
	BarColor    string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
	MaxLabels   int
}

// PieOpts customises the pie chart renderer.
type PieOpts struct {
	Title       string
	Description string
	Colors      []string
	LabelColor  string
}

// Defaults for the dashboard charts.
const (
	DefaultWidth     = 720
	DefaultHeight    = 260
	DefaultPadding   = 32.0
	DefaultTicks     = 5
	DefaultMaxLabels = 8
)

// Palette is the default slice color cycle.
var Palette = []string{
	"#2563eb", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6",
	"#06b6d4", "#ec4899", "#84cc16", "#f97316", "#6366f1",
}
