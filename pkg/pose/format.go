package pose

import (
	"strconv"
	"strings"
)

// FormatPayload renders j in the estimator's grid format, multiplying each
// component back by the scale divisor for depth so that Parse with the same
// scale and depth returns j.
func FormatPayload(j JointSet, scale Scale, depth float64) string {
	divisor := scale.Divisor(depth)

	var b strings.Builder
	b.Grow(JointCount * 48)
	b.WriteString(gridOpen)
	for i, v := range j {
		if i > 0 {
			b.WriteString("]\n  [")
		}
		b.WriteString(formatComponent(v.X * divisor))
		b.WriteByte(' ')
		b.WriteString(formatComponent(v.Y * divisor))
		b.WriteByte(' ')
		b.WriteString(formatComponent(v.Z * divisor))
	}
	b.WriteString(gridClose)
	return b.String()
}

func formatComponent(v float64) string {
	return strconv.FormatFloat(v, 'e', 8, 64)
}
