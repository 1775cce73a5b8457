package render

import "strings"

// WrapLines breaks text greedily at single spaces so no line is wider than
// maxWidth, except that the first word of a line is always kept. Each line keeps
// its trailing space so measurement matches what is drawn.
func WrapLines(measure func(string) float64, text string, maxWidth float64) []string {
	words := strings.Split(text, " ")
	lines := make([]string, 0, 4)
	line := ""
	for n, word := range words {
		test := line + word + " "
		if measure(test) > maxWidth && n > 0 {
			lines = append(lines, line)
			line = word + " "
			continue
		}
		line = test
	}
	return append(lines, line)
}
