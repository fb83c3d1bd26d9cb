package dashboard

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Bar is one group of the sales-vs-profit chart.
type Bar struct {
	Label  string
	Sales  float64
	Profit float64
}

// ChartOpts customises Chart. Zero values pick the defaults below.
type ChartOpts struct {
	Title       string
	Width       int
	Height      int
	Padding     float64
	Ticks       int
	SalesColor  string
	ProfitColor string
	AxisColor   string
	GridColor   string
}

const (
	defaultChartWidth   = 640
	defaultChartHeight  = 220
	defaultChartPadding = 36.0
	defaultChartTicks   = 4
)

var errNoBars = errors.New("dashboard: chart needs at least one bar")

// Chart renders bars as an inline SVG with a sales and a profit column per group.
// Negative profit is drawn below the zero line.
func Chart(bars []Bar, opts ChartOpts) (template.HTML, error) {
	if len(bars) == 0 {
		return "", errNoBars
	}
	width := orInt(opts.Width, defaultChartWidth)
	height := orInt(opts.Height, defaultChartHeight)
	padding := opts.Padding
	if padding <= 0 {
		padding = defaultChartPadding
	}
	ticks := orInt(opts.Ticks, defaultChartTicks)
	salesColor := orString(opts.SalesColor, "#0ea5e9")
	profitColor := orString(opts.ProfitColor, "#22c55e")
	axisColor := orString(opts.AxisColor, "#475569")
	gridColor := orString(opts.GridColor, "#cbd5e1")

	plotW := float64(width) - 2*padding
	plotH := float64(height) - 2*padding
	if plotW <= 0 || plotH <= 0 {
		return "", fmt.Errorf("dashboard: chart viewport %dx%d too small", width, height)
	}

	low, high := chartRange(bars)
	scale := plotH / (high - low)
	bottom := padding + plotH
	zeroY := bottom + low*scale
	group := plotW / float64(len(bars))
	barW := group / 3

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-label="%s">`, width, height, template.HTMLEscapeString(orString(opts.Title, "Sales and profit")))

	for i := 0; i <= ticks; i++ {
		ratio := float64(i) / float64(ticks)
		y := bottom - ratio*plotH
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4"></line>`, padding, y, padding+plotW, y, gridColor)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, padding-6, y+4, axisColor, shortAmount(low+(high-low)*ratio))
	}
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s"></line>`, padding, zeroY, padding+plotW, zeroY, axisColor)

	for i, bar := range bars {
		x := padding + float64(i)*group
		label := template.HTMLEscapeString(bar.Label)
		y, h := column(bar.Sales, scale, zeroY, padding, bottom)
		fmt.Fprintf(&b, `<rect class="sales" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s sales</title></rect>`, x+barW*0.4, y, barW, h, salesColor, label)
		y, h = column(bar.Profit, scale, zeroY, padding, bottom)
		fmt.Fprintf(&b, `<rect class="profit" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s profit</title></rect>`, x+barW*1.6, y, barW, h, profitColor, label)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="11" text-anchor="middle">%s</text>`, x+group/2, bottom+16, axisColor, label)
	}

	legendY := math.Max(padding-14, 12)
	fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect><text x="%.2f" y="%.2f" fill="%s" font-size="10">Sales</text>`, padding, legendY-9, salesColor, padding+14, legendY, axisColor)
	fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect><text x="%.2f" y="%.2f" fill="%s" font-size="10">Profit</text>`, padding+70, legendY-9, profitColor, padding+84, legendY, axisColor)
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// chartRange spans every value and always includes zero.
func chartRange(bars []Bar) (low, high float64) {
	for _, bar := range bars {
		low = math.Min(low, math.Min(bar.Sales, bar.Profit))
		high = math.Max(high, math.Max(bar.Sales, bar.Profit))
	}
	if high-low < 1e-9 {
		high = low + 1
	}
	return low, high
}

// column returns the top and height of a bar for value, clipped to the plot area.
func column(value, scale, zeroY, top, bottom float64) (float64, float64) {
	h := math.Abs(value) * scale
	if value >= 0 {
		y := zeroY - h
		if y < top {
			h -= top - y
			y = top
		}
		return y, math.Max(h, 0)
	}
	if zeroY+h > bottom {
		h = bottom - zeroY
	}
	return zeroY, math.Max(h, 0)
}

// shortAmount labels an axis tick: 1500 → 1.5k, 2000000 → 2M.
func shortAmount(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e6:
		return trimZero(v/1e6) + "M"
	case abs >= 1e3:
		return trimZero(v/1e3) + "k"
	default:
		return trimZero(v)
	}
}

func trimZero(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	s = strings.TrimSuffix(s, ".0")
	if s == "-0" {
		return "0"
	}
	return s
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
