package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls how extracted page text is split before embedding.
type ChunkConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for chunking document pages.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  1000,
		MinChars:  300,
		Overlap:   150,
		MaxChunks: 40,
	}
}

// chunkText splits text into chunks of at most MaxChars runes. Cuts land
// on the last paragraph break in the window when one exists, so a
// paragraph shorter than MaxChars is never split; otherwise the cut falls
// back to whitespace, with Overlap runes carried into the next chunk so a
// fact straddling the cut stays retrievable.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		atParagraph := false
		if end < len(runes) {
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			cut := -1
			for i := end; i > minCut; i-- {
				if runes[i-1] == '\n' && i-1 > start && runes[i-2] == '\n' {
					cut = i
					atParagraph = true
					break
				}
			}
			if cut < 0 {
				cut = end
				for i := end; i > minCut; i-- {
					if unicode.IsSpace(runes[i-1]) {
						cut = i
						break
					}
				}
			}
			end = cut
		}

		if end <= start {
			break
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		// A paragraph cut is already a semantic boundary; overlap would
		// just duplicate the previous paragraph's tail.
		nextStart := end
		if cfg.Overlap > 0 && !atParagraph {
			if end-start > cfg.Overlap {
				nextStart = end - cfg.Overlap
			}
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}
