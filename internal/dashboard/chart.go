package dashboard

import (
	"fmt"
	"io"
	"math"
	"strconv"

	svg "github.com/ajstarks/svgo"
)

const (
	chartWidth  = 960
	chartHeight = 480
	marginLeft  = 70
	marginRight = 20
	marginTop   = 40
	marginBase  = 140
	yTicks      = 5
)

// RenderHistogram draws one bar per bin scaled to the largest sum.
func RenderHistogram(w io.Writer, x, y string, bins []Bin) {
	canvas := svg.New(w)
	canvas.Start(chartWidth, chartHeight, `font-size="12px" font-family="Helvetica,Arial,sans-serif"`)
	defer canvas.End()

	canvas.Title(fmt.Sprintf("%s por %s", y, x))
	canvas.Rect(0, 0, chartWidth, chartHeight, "fill:#fff")

	plotW := chartWidth - marginLeft - marginRight
	plotH := chartHeight - marginTop - marginBase
	baseY := marginTop + plotH

	maxSum := 0.0
	for _, bin := range bins {
		maxSum = math.Max(maxSum, bin.Sum)
	}
	if maxSum == 0 {
		maxSum = 1
	}

	for i := 0; i <= yTicks; i++ {
		value := maxSum * float64(i) / yTicks
		ty := baseY - int(float64(plotH)*float64(i)/yTicks)
		canvas.Line(marginLeft, ty, marginLeft+plotW, ty, "stroke:#eee")
		canvas.Text(marginLeft-6, ty, formatTick(value), `text-anchor="end"`, `dy=".3em"`, "fill:#666")
	}
	canvas.Line(marginLeft, baseY, marginLeft+plotW, baseY, "stroke:#888;stroke-width:2")

	if len(bins) > 0 {
		slot := float64(plotW) / float64(len(bins))
		barW := int(math.Max(1, slot*0.8))
		for i, bin := range bins {
			h := int(float64(plotH) * math.Max(bin.Sum, 0) / maxSum)
			bx := marginLeft + int(slot*float64(i)+slot*0.1)
			canvas.Rect(bx, baseY-h, barW, h, "fill:#117029")
			cx := bx + barW/2
			canvas.Text(cx, baseY+12, bin.Category,
				`text-anchor="end"`, fmt.Sprintf(`transform="rotate(-45 %d %d)"`, cx, baseY+12), "fill:#333")
		}
	}

	canvas.Text(marginLeft+plotW/2, chartHeight-8, x, `text-anchor="middle"`, "fill:#333")
	canvas.Text(16, marginTop+plotH/2, y,
		`text-anchor="middle"`, fmt.Sprintf(`transform="rotate(-90 16 %d)"`, marginTop+plotH/2), "fill:#333")
}

func formatTick(value float64) string {
	if value == math.Trunc(value) {
		return strconv.FormatFloat(value, 'f', 0, 64)
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}
