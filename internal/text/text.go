// Package text holds the small string helpers shared by the send path.
package text

import "html"

// Split partitions message into consecutive chunks of at most maxLength
// characters. Every chunk except the last has exactly maxLength characters;
// the last holds the remainder. An empty message yields a single empty chunk.
// Concatenating the result reconstructs the input exactly.
//
// Splitting is done on runes, not bytes: Telegram counts message length in
// characters, and a chunk must never end mid-rune.
func Split(message string, maxLength int) []string {
	runes := []rune(message)

	var chunks []string
	for len(runes) > maxLength {
		chunks = append(chunks, string(runes[:maxLength]))
		runes = runes[maxLength:]
	}
	return append(chunks, string(runes))
}

// Pre wraps text in a <pre> block for fixed-width rendering, escaping any
// HTML metacharacters first.
func Pre(text string) string {
	return "<pre>" + html.EscapeString(text) + "</pre>"
}
