// Copyright (c) Microsoft. All rights reserved.

package workspace

import (
	"fmt"
	"regexp"
	"strings"
)

// CodeBlock is one fenced block from a model reply.
type CodeBlock struct {
	Lang string
	Code string
}

// Ext returns the file extension for the block's language, or "" when the
// language is not one that gets saved.
func (b CodeBlock) Ext() string {
	return extensions[strings.ToLower(b.Lang)]
}

// Languages that are written to disk, keyed by fence tag.
var extensions = map[string]string{
	"html":       "html",
	"css":        "css",
	"javascript": "js",
	"js":         "js",
	"python":     "py",
	"py":         "py",
	"sql":        "sql",
	"json":       "json",
	"yaml":       "yml",
	"yml":        "yml",
	"go":         "go",
}

var fence = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[^\\n]*\\n(.*?)```")

// ExtractCodeBlocks returns every fenced block in text, in order.
func ExtractCodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	for _, m := range fence.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, CodeBlock{Lang: m[1], Code: strings.TrimSpace(m[2])})
	}
	return blocks
}

// FirstCodeBlock returns the first block in lang (any language when lang
// is empty).
func FirstCodeBlock(text, lang string) (CodeBlock, bool) {
	for _, b := range ExtractCodeBlocks(text) {
		if lang == "" || strings.EqualFold(b.Lang, lang) {
			return b, true
		}
	}
	return CodeBlock{}, false
}

// SaveCodeBlocks writes the saveable blocks in text as
// "<author>_<n>.<ext>", numbering blocks per extension from zero, and
// returns the relative paths written.
func (w *Workspace) SaveCodeBlocks(author, text string) ([]string, error) {
	prefix := strings.ToLower(strings.Trim(unsafeName.ReplaceAllString(author, "_"), "_"))
	if prefix == "" {
		prefix = "unknown"
	}
	counts := make(map[string]int)
	var saved []string
	for _, b := range ExtractCodeBlocks(text) {
		ext := b.Ext()
		if ext == "" || b.Code == "" {
			continue
		}
		name := fmt.Sprintf("%s_%d.%s", prefix, counts[ext], ext)
		counts[ext]++
		if _, err := w.Save(name, b.Code); err != nil {
			return saved, err
		}
		saved = append(saved, name)
	}
	return saved, nil
}
