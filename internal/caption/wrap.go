package caption

import "strings"

// Display layout defaults for the target glasses display.
const (
	// DefaultWrapWidth is the maximum number of characters per display line.
	DefaultWrapWidth = 640

	// DefaultMaxLines is the number of lines the display can show.
	DefaultMaxLines = 4
)

// Wrap lays text out for a fixed-width, fixed-line-count display using greedy
// word wrap: words are packed into lines without exceeding width characters
// per line, up to maxLines lines. Width is measured in runes, not bytes, so
// multibyte scripts count one character per glyph and splits never land
// inside a UTF-8 sequence. Words longer than width are hard-split. Content
// beyond maxLines is truncated silently — the display has no scrollback, so
// older overflow is simply not shown.
//
// Wrap is a pure function: identical inputs always yield identical output,
// and re-wrapping its own output is a no-op as long as the output fit the
// constraints.
func Wrap(text string, width, maxLines int) string {
	if width <= 0 || maxLines <= 0 {
		return ""
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	var line strings.Builder
	lineLen := 0 // runes on the current line

	flush := func() {
		if lineLen > 0 {
			lines = append(lines, line.String())
			line.Reset()
			lineLen = 0
		}
	}

	for _, word := range words {
		runes := []rune(word)

		// Hard-split words that cannot fit on any line. CJK translations
		// arrive as one space-free word, so this is the common path for them.
		for len(runes) > width {
			flush()
			if len(lines) >= maxLines {
				return strings.Join(lines[:maxLines], "\n")
			}
			lines = append(lines, string(runes[:width]))
			runes = runes[width:]
		}
		if len(runes) == 0 {
			continue
		}

		switch {
		case lineLen == 0:
			line.WriteString(string(runes))
			lineLen = len(runes)
		case lineLen+1+len(runes) <= width:
			line.WriteByte(' ')
			line.WriteString(string(runes))
			lineLen += 1 + len(runes)
		default:
			flush()
			if len(lines) >= maxLines {
				return strings.Join(lines[:maxLines], "\n")
			}
			line.WriteString(string(runes))
			lineLen = len(runes)
		}
	}
	flush()

	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return strings.Join(lines, "\n")
}
