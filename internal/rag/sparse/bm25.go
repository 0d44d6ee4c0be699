package sparse

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/rag/chunk"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// Hit is one keyword match, mirroring the dense side so the hybrid
// coordinator can merge the two sets by Ref.
type Hit struct {
	Ref      string
	Filename string
	Content  string
	Score    float64
}

type chunkStats struct {
	Ref      string         `json:"ref"`
	Filename string         `json:"filename"`
	Content  string         `json:"content"`
	Length   int            `json:"length"` //token count after stopword removal
	TermFreq map[string]int `json:"term_freq"`
}

// Index is a BM25 term-statistics structure over every ingested chunk of a
// corpus. It is rebuilt per document on ingest and persisted as JSON so
// queries never re-tokenize raw text.
type Index struct {
	mu sync.RWMutex

	K1     float64        `json:"k1"`
	B      float64        `json:"b"`
	Chunks []chunkStats   `json:"chunks"`
	DF     map[string]int `json:"df"` //term -> number of chunks containing it
}

func NewIndex() *Index {
	return &Index{
		K1: config.BM25K1,
		B:  config.BM25B,
		DF: make(map[string]int),
	}
}

func Load(data []byte) (*Index, error) {
	idx := NewIndex()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fault.Storage(err, "decoding sparse index")
	}
	if idx.DF == nil {
		idx.DF = make(map[string]int)
	}
	return idx, nil
}

func (idx *Index) Marshal() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	data, err := json.Marshal(idx)
	if err != nil {
		return nil, fault.Storage(err, "encoding sparse index")
	}
	return data, nil
}

// ReplaceDocument drops the document's prior statistics and indexes the new
// chunks, keeping re-ingest idempotent on the sparse side too.
func (idx *Index) ReplaceDocument(filename string, chunks []chunk.Chunk) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(filename)
	for _, c := range chunks {
		tokens := tokenize(c.Content)
		if len(tokens) == 0 {
			continue
		}
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			idx.DF[term]++
		}
		idx.Chunks = append(idx.Chunks, chunkStats{
			Ref:      c.Ref,
			Filename: c.Filename,
			Content:  c.Content,
			Length:   len(tokens),
			TermFreq: tf,
		})
	}
}

func (idx *Index) RemoveDocument(filename string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(filename)
}

func (idx *Index) removeLocked(filename string) {
	kept := idx.Chunks[:0]
	for _, cs := range idx.Chunks {
		if cs.Filename == filename {
			for term := range cs.TermFreq {
				idx.DF[term]--
				if idx.DF[term] <= 0 {
					delete(idx.DF, term)
				}
			}
			continue
		}
		kept = append(kept, cs)
	}
	idx.Chunks = kept
}

func (idx *Index) ChunkCount(filename string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	count := 0
	for _, cs := range idx.Chunks {
		if cs.Filename == filename {
			count++
		}
	}
	return count
}

// Score ranks the corpus chunks against the query with standard BM25.
// Chunks with zero term overlap are omitted entirely.
func (idx *Index) Score(query string, topK int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := tokenize(query)
	if len(terms) == 0 || len(idx.Chunks) == 0 {
		return nil
	}

	n := float64(len(idx.Chunks))
	totalLen := 0
	for _, cs := range idx.Chunks {
		totalLen += cs.Length
	}
	avgLen := float64(totalLen) / n

	var hits []Hit
	for _, cs := range idx.Chunks {
		score := 0.0
		for _, term := range terms {
			tf, ok := cs.TermFreq[term]
			if !ok {
				continue
			}
			df := float64(idx.DF[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := idx.K1*(1-idx.B+idx.B*float64(cs.Length)/avgLen) + float64(tf)
			score += idf * (float64(tf) * (idx.K1 + 1)) / norm
		}
		if score > 0 {
			hits = append(hits, Hit{
				Ref:      cs.Ref,
				Filename: cs.Filename,
				Content:  cs.Content,
				Score:    score,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, isStop := stopwords[tok]; isStop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on",
		"at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this",
		"that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than",
		"so", "such", "into", "about", "between", "through", "during", "before", "after", "above",
		"below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
