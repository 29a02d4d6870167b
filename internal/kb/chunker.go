package kb

import "strings"

// Chunk splits text into consecutive windows of size characters where each
// window starts overlap characters before the previous one ended. Whitespace
// runs are collapsed to single spaces before windowing. Blank input yields no
// chunks. The step between windows is clamped to a minimum of one character
// so a degenerate overlap >= size still makes forward progress.
func Chunk(text string, size, overlap int) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
