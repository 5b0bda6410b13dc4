package ingest

import "strings"

// chunkText splits text into overlapping windows of approximately
// windowTokens tokens, sliding forward by (windowTokens - overlapTokens)
// tokens each step. Nothing in the example pack pulls in a model-specific
// tokenizer (e.g. tiktoken), so tokens are approximated as whitespace-split
// words — close enough for chunk sizing, never used for anything billing-
// sensitive.
func chunkText(text string, windowTokens, overlapTokens int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if windowTokens <= 0 {
		windowTokens = len(words)
	}
	if overlapTokens < 0 || overlapTokens >= windowTokens {
		overlapTokens = 0
	}
	stride := windowTokens - overlapTokens

	var chunks []string
	for start := 0; start < len(words); start += stride {
		end := start + windowTokens
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// estimateTokens approximates a text's token count by word count, the same
// heuristic chunkText uses for window sizing.
func estimateTokens(text string) int {
	return len(strings.Fields(text))
}
