package ui

import "strings"

// barLevels are the Unicode block characters used to chart relevance,
// lowest to highest.
var barLevels = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// ScoreBar charts a ranked score list as one block character per result,
// scaled against the best score. Lists longer than width are downsampled
// so the chart keeps its overall shape.
func ScoreBar(scores []int, width int) string {
	if len(scores) == 0 || width <= 0 {
		return ""
	}

	max := 0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max <= 0 {
		return strings.Repeat(string(barLevels[0]), min(len(scores), width))
	}

	n := len(scores)
	if n <= width {
		var sb strings.Builder
		sb.Grow(n * 3) // UTF-8 block chars are 3 bytes
		for _, s := range scores {
			sb.WriteRune(levelFor(s, max))
		}
		return sb.String()
	}

	// Downsample: each cell shows the best score in its slice of the list.
	var sb strings.Builder
	sb.Grow(width * 3)
	for cell := 0; cell < width; cell++ {
		lo := cell * n / width
		hi := (cell + 1) * n / width
		if hi <= lo {
			hi = lo + 1
		}
		best := 0
		for _, s := range scores[lo:hi] {
			if s > best {
				best = s
			}
		}
		sb.WriteRune(levelFor(best, max))
	}
	return sb.String()
}

// levelFor maps a score to a block rune scaled against max.
func levelFor(score, max int) rune {
	if score < 0 {
		score = 0
	}
	idx := score * (len(barLevels) - 1) / max
	if idx < 0 {
		idx = 0
	}
	if idx >= len(barLevels) {
		idx = len(barLevels) - 1
	}
	return barLevels[idx]
}
