// Package duration converts between "HH:MM:SS" activity durations and seconds.
package duration

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse converts "HH:MM:SS" into seconds. Missing trailing segments count as
// zero and a segment that is not an integer silently counts as zero, so
// "01:xx:30" parses to 3630.
func Parse(text string) int64 {
	parts := strings.Split(text, ":")
	weights := [3]int64{3600, 60, 1}

	var total int64
	for i, w := range weights {
		if i >= len(parts) {
			break
		}
		n, err := strconv.ParseInt(strings.TrimSpace(parts[i]), 10, 64)
		if err != nil {
			continue
		}
		total += n * w
	}
	return total
}

// Format renders seconds as zero-padded "HH:MM:SS". Hours are not wrapped at
// 24; negative input renders as "00:00:00".
func Format(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
