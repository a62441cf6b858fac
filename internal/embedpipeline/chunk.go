// Package embedpipeline turns a primary node's text fields into one or more
// embedding vectors: it chunks text per the schema's declared strategy,
// dispatches bounded-concurrency embedding calls against a
// [embeddings.Provider], and falls back to a deterministic pseudo-random
// vector when a provider persistently fails so that ingestion always
// completes.
package embedpipeline

import (
	"regexp"
	"strings"

	"github.com/MrWong99/graphkb/internal/schemadsl"
)

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+.*$`)
var sentenceBoundary = regexp.MustCompile(`(?s)([.!?])\s+`)

// Chunk splits text per cfg's strategy, packing whitespace-word-counted
// segments to cfg.MaxTokens with cfg.Overlap words repeated between
// consecutive chunks. Token count is approximated by whitespace-separated
// words; a real tokenizer is not required by spec.
func Chunk(text string, cfg schemadsl.ChunkingConfig) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var units []string
	switch cfg.Strategy {
	case "by_headings":
		units = splitByHeadings(text)
	case "paragraph":
		units = splitOnBlank(text, "\n\n")
	case "sentence":
		units = splitSentences(text)
	default:
		units = []string{text}
	}

	return packWords(units, cfg.MaxTokens, cfg.Overlap)
}

func splitByHeadings(text string) []string {
	indices := headingPattern.FindAllStringIndex(text, -1)
	if len(indices) == 0 {
		return []string{text}
	}
	var units []string
	for i, loc := range indices {
		start := loc[0]
		end := len(text)
		if i+1 < len(indices) {
			end = indices[i+1][0]
		}
		if unit := strings.TrimSpace(text[start:end]); unit != "" {
			units = append(units, unit)
		}
	}
	return units
}

func splitOnBlank(text, sep string) []string {
	var units []string
	for _, part := range strings.Split(text, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			units = append(units, trimmed)
		}
	}
	if len(units) == 0 {
		return []string{text}
	}
	return units
}

func splitSentences(text string) []string {
	replaced := sentenceBoundary.ReplaceAllString(text, "$1\x00")
	var units []string
	for _, part := range strings.Split(replaced, "\x00") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			units = append(units, trimmed)
		}
	}
	if len(units) == 0 {
		return []string{text}
	}
	return units
}

// packWords packs the whitespace-separated words of each unit into chunks
// of at most maxTokens words, repeating the last overlap words of one chunk
// at the start of the next chunk of the same unit. A chunk never spans two
// units.
func packWords(units []string, maxTokens, overlap int) []string {
	if maxTokens <= 0 {
		maxTokens = 500
	}

	var chunks []string
	for _, u := range units {
		words := strings.Fields(u)
		start := 0
		for start < len(words) {
			end := start + maxTokens
			if end > len(words) {
				end = len(words)
			}
			chunks = append(chunks, strings.Join(words[start:end], " "))
			if end == len(words) {
				break
			}
			next := end - overlap
			if next <= start {
				next = end
			}
			start = next
		}
	}
	return chunks
}
