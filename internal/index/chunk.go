// Package index builds the offline search index: it walks a checkout
// of example contracts, splits each .compact source on declaration
// boundaries, embeds the chunks and stores them for semantic recall.
package index

import (
	"sort"
	"strings"

	"compactmcp/internal/contract"
	"compactmcp/internal/store"
)

// defaultChunkMaxBytes caps one chunk when the config carries no limit.
const defaultChunkMaxBytes = 8192

// chunkFile splits one source file on declaration boundaries. Each
// declaration owns the lines from its start to the line before the
// next declaration; leading material before the first declaration
// (pragma, imports, file comments) becomes a module chunk. A file the
// scanner finds nothing in is indexed as a single module chunk.
func chunkFile(relPath, text string, maxBytes int) []store.Chunk {
	if maxBytes <= 0 {
		maxBytes = defaultChunkMaxBytes
	}

	unit := &contract.SourceUnit{Text: text, Filename: relPath}
	s := contract.Scan(unit)

	type decl struct {
		kind string
		name string
		line int
	}
	var decls []decl
	for _, c := range s.Circuits {
		decls = append(decls, decl{"circuit", c.Name, c.Line})
	}
	for _, w := range s.Witnesses {
		decls = append(decls, decl{"witness", w.Name, w.Line})
	}
	for _, l := range s.LedgerItems {
		decls = append(decls, decl{"ledger", l.Name, l.Line})
	}
	for _, ty := range s.Types {
		decls = append(decls, decl{"type", ty.Name, ty.Line})
	}
	for _, st := range s.Structs {
		decls = append(decls, decl{"struct", st.Name, st.Line})
	}
	for _, en := range s.Enums {
		decls = append(decls, decl{"enum", en.Name, en.Line})
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].line < decls[j].line })

	lines := strings.Split(text, "\n")
	if len(decls) == 0 {
		return []store.Chunk{{
			Path:      relPath,
			Kind:      "module",
			StartLine: 1,
			Content:   clip(text, maxBytes),
		}}
	}

	var chunks []store.Chunk

	// Header chunk: everything before the first declaration.
	if first := decls[0].line; first > 1 {
		header := strings.Join(lines[:first-1], "\n")
		if strings.TrimSpace(header) != "" {
			chunks = append(chunks, store.Chunk{
				Path:      relPath,
				Kind:      "module",
				StartLine: 1,
				Content:   clip(header, maxBytes),
			})
		}
	}

	for i, d := range decls {
		endLine := len(lines)
		if i+1 < len(decls) {
			endLine = decls[i+1].line - 1
		}
		if endLine < d.line {
			endLine = d.line
		}
		content := strings.Join(lines[d.line-1:endLine], "\n")
		chunks = append(chunks, store.Chunk{
			Path:      relPath,
			Kind:      d.kind,
			Name:      d.name,
			StartLine: d.line,
			Content:   clip(strings.TrimRight(content, "\n"), maxBytes),
		})
	}
	return chunks
}

// clip truncates oversized content on a line boundary where possible.
func clip(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	cut := text[:maxBytes]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
