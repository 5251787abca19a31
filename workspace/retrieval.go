// Copyright (c) Microsoft. All rights reserved.

package workspace

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// Passage is one indexed piece of a document.
type Passage struct {
	Source string
	Index  int
	Text   string

	terms map[string]int
}

// Hit is a search result.
type Hit struct {
	Passage
	Score float64
}

// Document summarizes an indexed source.
type Document struct {
	Source   string
	Passages int
}

// Retriever is a keyword index over documents. As an
// [af.ContextProvider] it adds the passages that best match the latest
// user message to the agent's instructions.
type Retriever struct {
	af.NoOpContextProvider

	mu         sync.RWMutex
	passages   []*Passage
	docs       []Document
	df         map[string]int
	chunkSize  int
	maxResults int
}

// RetrieverOption configures a [Retriever].
type RetrieverOption func(*Retriever)

// WithChunkSize sets the target passage length in bytes. Defaults to 800.
func WithChunkSize(n int) RetrieverOption {
	return func(r *Retriever) { r.chunkSize = n }
}

// WithMaxResults sets how many passages Invoking contributes. Defaults to 5.
func WithMaxResults(n int) RetrieverOption {
	return func(r *Retriever) { r.maxResults = n }
}

// NewRetriever returns an empty index.
func NewRetriever(opts ...RetrieverOption) *Retriever {
	r := &Retriever{df: make(map[string]int), chunkSize: 800, maxResults: 5}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Index splits text into passages on paragraph boundaries and adds them
// under source. It returns the number of passages added.
func (r *Retriever) Index(source, text string) int {
	chunks := chunk(text, r.chunkSize)
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range chunks {
		p := &Passage{Source: source, Index: i, Text: c, terms: termCounts(c)}
		for t := range p.terms {
			r.df[t]++
		}
		r.passages = append(r.passages, p)
	}
	r.docs = append(r.docs, Document{Source: source, Passages: len(chunks)})
	return len(chunks)
}

// IndexFile indexes a workspace file under its relative path.
func (r *Retriever) IndexFile(w *Workspace, rel string) (int, error) {
	text, err := w.Read(rel)
	if err != nil {
		return 0, err
	}
	return r.Index(rel, text), nil
}

// Documents lists the indexed sources in indexing order.
func (r *Retriever) Documents() []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.docs)
}

// Search returns up to limit passages ranked by tf-idf against query.
// Passages sharing no term with the query are never returned.
func (r *Retriever) Search(query string, limit int) []Hit {
	q := termCounts(query)
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := float64(len(r.passages))
	var hits []Hit
	for _, p := range r.passages {
		var score float64
		for t := range q {
			tf := p.terms[t]
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + n/float64(r.df[t]))
			score += (1 + math.Log(float64(tf))) * idf
		}
		if score > 0 {
			hits = append(hits, Hit{Passage: *p, Score: score})
		}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Invoking contributes the best matches for the latest user message.
func (r *Retriever) Invoking(_ context.Context, messages []af.Message) (*af.InvocationContext, error) {
	var query string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == af.RoleUser {
			query = messages[i].Text()
			break
		}
	}
	hits := r.Search(query, r.maxResults)
	if len(hits) == 0 {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString("Relevant specification excerpts:\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "\n[%s #%d]\n%s\n", h.Source, h.Index+1, h.Text)
	}
	return &af.InvocationContext{Instructions: b.String()}, nil
}

// chunk groups paragraphs into passages of roughly size bytes. A single
// paragraph longer than size becomes its own passage.
func chunk(text string, size int) []string {
	var out []string
	var cur strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para) > size {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"are": true, "from": true, "should": true, "must": true, "will": true, "all": true,
	"please": true, "into": true, "any": true, "can": true, "not": true, "use": true,
}

func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		counts[w]++
	}
	return counts
}
