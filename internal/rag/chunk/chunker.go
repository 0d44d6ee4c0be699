package chunk

import (
	"fmt"
	"strings"
	"sync"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Chunk is one bounded segment of a document's markdown, carrying enough
// back-reference to attribute a search hit to its source.
type Chunk struct {
	Filename string
	Ref      string //deterministic "<filename>:<order>"
	Order    int
	Offset   int //byte offset of the chunk start in the source text
	Content  string
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// cl100k_base matches the embedding models in use; loaded once per process.
func countTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		//encoder unavailable, approximate at 4 chars per token
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// Split cuts markdown into chunks bounded by characters and tokens, with
// character overlap between neighbours for semantic continuity. Paragraph
// breaks are preferred split points, then line breaks, then sentences.
func Split(filename, text string) []Chunk {
	pieces := splitBounded(text, config.ChunkMaxChars, config.ChunkOverlapChars)

	var out []Chunk
	offset := 0
	order := 0
	for _, piece := range pieces {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		//token cap on top of the char bound; long token runs get re-split hard
		for _, sub := range enforceTokenCap(trimmed, config.ChunkMaxTokens) {
			idx := strings.Index(text[offset:], sub)
			pos := offset
			if idx >= 0 {
				pos = offset + idx
			}
			out = append(out, Chunk{
				Filename: filename,
				Ref:      fmt.Sprintf("%s:%d", filename, order),
				Order:    order,
				Offset:   pos,
				Content:  sub,
			})
			order++
		}
		if idx := strings.Index(text[offset:], trimmed); idx >= 0 {
			offset += idx
		}
	}
	return out
}

func splitBounded(text string, limit int, overlap int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	//separators ordered from best to worst for semantic meaning
	separators := []string{"\n\n", "\n", ". ", " ", ""}

	var splitChar string
	found := false
	for _, s := range separators {
		if strings.Contains(text, s) {
			splitChar = s
			found = true
			break
		}
	}
	if !found {
		//hard cut if no separator found (rare)
		return []string{text[:limit]}
	}

	parts := strings.Split(text, splitChar)
	var chunks []string
	var currentChunk strings.Builder

	for _, part := range parts {
		if currentChunk.Len()+len(part)+len(splitChar) > limit {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			//start the next chunk with the tail of the previous one
			overlapContent := ""
			if currentChunk.Len() > overlap {
				overlapContent = currentChunk.String()[currentChunk.Len()-overlap:]
			}
			currentChunk.Reset()
			currentChunk.WriteString(overlapContent)
		}

		if currentChunk.Len() > 0 && splitChar != "" {
			currentChunk.WriteString(splitChar)
		}
		currentChunk.WriteString(part)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}
	return chunks
}

func enforceTokenCap(text string, maxTokens int) []string {
	if countTokens(text) <= maxTokens {
		return []string{text}
	}
	mid := len(text) / 2
	//split on the space nearest the midpoint to avoid cutting a word
	cut := strings.LastIndex(text[:mid], " ")
	if cut <= 0 {
		cut = mid
	}
	left := strings.TrimSpace(text[:cut])
	right := strings.TrimSpace(text[cut:])
	if left == "" || right == "" {
		return []string{text}
	}
	return append(enforceTokenCap(left, maxTokens), enforceTokenCap(right, maxTokens)...)
}
