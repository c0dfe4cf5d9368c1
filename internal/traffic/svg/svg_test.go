package svg

import (
	"strings"
	"testing"
)

func TestLineProducesSVG(t *testing.T) {
	html, err := Line(400, 200, []float64{100, 200, 150}, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, LineOpts{
		Title:       "Visits over time",
		Description: "Daily visits",
		ShowDots:    true,
	})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") {
		t.Fatalf("expected svg output, got %s", output)
	}
	if !strings.Contains(output, "<path") {
		t.Fatalf("expected path element in svg")
	}
	if !strings.Contains(output, `aria-labelledby="visits-over-time-line-title visits-over-time-line-desc"`) {
		t.Fatalf("expected accessibility attributes: %s", output)
	}
	if strings.Count(output, "<circle") != 3 {
		t.Fatalf("expected one dot per point")
	}
}

func TestLineRejectsMismatchedLabels(t *testing.T) {
	if _, err := Line(400, 200, nil, nil, LineOpts{}); err == nil {
		t.Fatalf("expected error for empty series")
	}
	if _, err := Line(400, 200, []float64{1, 2}, []string{"a"}, LineOpts{}); err == nil {
		t.Fatalf("expected error for mismatched labels")
	}
}

func TestLineThinsLabels(t *testing.T) {
	series := make([]float64, 40)
	labels := make([]string, 40)
	for i := range series {
		series[i] = float64(i)
		labels[i] = "d" + strings.Repeat("x", i%3)
	}
	html, err := Line(0, 0, series, labels, LineOpts{MaxLabels: 5})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	// 5 grid ticks plus at most MaxLabels+1 axis labels.
	if got := strings.Count(string(html), "<text"); got > 6+6 {
		t.Fatalf("expected thinned labels, got %d text nodes", got)
	}
}

func TestHistogramDrawsOneBarPerBin(t *testing.T) {
	counts := []float64{1, 0, 3, 2}
	labels := []string{"0", "5", "10", "15"}
	html, err := Histogram(400, 200, counts, labels, HistogramOpts{Title: "Visits distribution"})
	if err != nil {
		t.Fatalf("histogram renderer error: %v", err)
	}
	output := string(html)
	if got := strings.Count(output, "<rect"); got != len(counts) {
		t.Fatalf("expected %d bars, got %d", len(counts), got)
	}
	if !strings.Contains(output, "<title>10: 3</title>") {
		t.Fatalf("expected bar tooltip, got %s", output)
	}
}

func TestHistogramErrors(t *testing.T) {
	if _, err := Histogram(400, 200, nil, nil, HistogramOpts{}); err == nil {
		t.Fatalf("expected error for no bins")
	}
	if _, err := Histogram(400, 200, []float64{1}, []string{"a", "b"}, HistogramOpts{}); err == nil {
		t.Fatalf("expected error for mismatched labels")
	}
	if _, err := Histogram(10, 10, []float64{1}, []string{"a"}, HistogramOpts{Padding: 20}); err == nil {
		t.Fatalf("expected error for tiny viewport")
	}
}

func TestPieSlicesAndLegend(t *testing.T) {
	html, err := Pie(400, 200, []float64{30, 70, 0}, []string{"ads", "organic", "empty"}, PieOpts{Title: "Visits by category"})
	if err != nil {
		t.Fatalf("pie renderer error: %v", err)
	}
	output := string(html)
	if !strings.Contains(output, "<svg role=\"img\" aria-label=\"Visits by category\"") {
		t.Fatalf("expected labelled svg root, got %.120s", output)
	}
	if !strings.Contains(output, "organic (70.0%)") || !strings.Contains(output, "ads (30.0%)") {
		t.Fatalf("expected slice shares, got %s", output)
	}
	if strings.Contains(output, "empty") {
		t.Fatalf("zero slices must be skipped")
	}
}

func TestPieSingleSlice(t *testing.T) {
	html, err := Pie(400, 200, []float64{5}, []string{"ads"}, PieOpts{})
	if err != nil {
		t.Fatalf("pie renderer error: %v", err)
	}
	if !strings.Contains(string(html), "ads (100.0%)") {
		t.Fatalf("expected full share for a single slice")
	}
}

func TestPieStripsMarkupFromLabels(t *testing.T) {
	html, err := Pie(400, 200, []float64{1, 1}, []string{"<script>x</script>", "ok"}, PieOpts{})
	if err != nil {
		t.Fatalf("pie renderer error: %v", err)
	}
	if strings.Contains(string(html), "<script>") {
		t.Fatalf("label markup leaked into svg")
	}
}

func TestPieRejectsZeroTotal(t *testing.T) {
	if _, err := Pie(400, 200, []float64{0, 0}, []string{"a", "b"}, PieOpts{}); err == nil {
		t.Fatalf("expected error for zero total")
	}
}

func TestPlaceholderEscapesMessage(t *testing.T) {
	html := Placeholder(0, 0, "Visits", "<no data>")
	output := string(html)
	if !strings.Contains(output, "&lt;no data&gt;") {
		t.Fatalf("expected escaped message, got %s", output)
	}
	if !strings.HasSuffix(output, "</svg>") {
		t.Fatalf("expected closed svg")
	}
}

func TestFormatTick(t *testing.T) {
	cases := map[float64]string{
		12:        "12",
		12.5:      "12.50",
		1500:      "1.5k",
		2_500_000: "2.5M",
	}
	for in, want := range cases {
		if got := formatTick(in); got != want {
			t.Fatalf("formatTick(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestRendererDelegates(t *testing.T) {
	var r Renderer
	direct, err := Pie(300, 200, []float64{1, 3}, []string{"ads", "organic"}, PieOpts{Title: "Share"})
	if err != nil {
		t.Fatalf("pie renderer error: %v", err)
	}
	viaRenderer, err := r.Pie(300, 200, []float64{1, 3}, []string{"ads", "organic"}, PieOpts{Title: "Share"})
	if err != nil {
		t.Fatalf("renderer pie error: %v", err)
	}
	if direct != viaRenderer {
		t.Fatal("renderer output differs from package function")
	}
	if _, err := r.Histogram(300, 200, nil, nil, HistogramOpts{}); err == nil {
		t.Fatal("expected error for empty histogram")
	}
	if _, err := r.Line(300, 200, []float64{1}, []string{"a", "b"}, LineOpts{}); err == nil {
		t.Fatal("expected label mismatch error")
	}
}
