package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMinChunkLength is the length below which a chunk is treated as
	// noise and skipped.
	DefaultMinChunkLength = 50

	// DefaultMaxChunkLength is the character budget per extractor call.
	// Longer chunks are truncated; the loss is accepted and not retried
	// with continuation.
	DefaultMaxChunkLength = 4000
)

// Chunker splits document text into extractor-sized chunks. Splitting is
// sentence-aware so a chunk rarely ends mid-fact, and character-budgeted
// because the extractor contract is character-based, not token-based.
type Chunker struct {
	MaxChunkLength int // characters per chunk (default: 4000)
}

// Chunk splits content into chunks of at most MaxChunkLength characters,
// breaking at sentence boundaries where possible. Whitespace-only content
// yields no chunks.
func (c *Chunker) Chunk(content string) []string {
	maxLen := c.MaxChunkLength
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range splitSentences(content) {
		if current.Len() > 0 && current.Len()+len(sentence) > maxLen {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if len(sentence) > maxLen {
			// A single oversized sentence is split hard at the budget.
			for len(sentence) > maxLen {
				cut := runeAlignedCut(sentence, maxLen)
				chunks = append(chunks, strings.TrimSpace(sentence[:cut]))
				sentence = sentence[cut:]
			}
		}
		current.WriteString(sentence)
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// splitSentences breaks text at sentence-ending punctuation followed by
// whitespace. Terminators stay attached to their sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?', '\n':
			if text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\t' {
				sentences = append(sentences, text[start:i+1]+" ")
				start = i + 2
				i++
			}
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// Truncate enforces the extractor's character budget on a single chunk.
func Truncate(text string, maxLen int) string {
	if maxLen > 0 && len(text) > maxLen {
		return text[:runeAlignedCut(text, maxLen)]
	}
	return text
}

// runeAlignedCut returns the largest cut point not past maxLen bytes that
// does not split a multi-byte rune. When even the first rune does not fit
// the budget, the cut includes it whole rather than emit invalid UTF-8.
func runeAlignedCut(s string, maxLen int) int {
	if len(s) <= maxLen {
		return len(s)
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, n := utf8.DecodeRuneInString(s)
		return n
	}
	return cut
}
