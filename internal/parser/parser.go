package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"persona-rag/internal/models"
)

// LoadCorpus reads every .txt file directly under dir and returns its
// paragraphs as chunks. Symlinks are followed; subdirectories and other file
// types are ignored.
// Chunks keep the paragraph order of each file; file order is whatever the
// directory listing returns.
func LoadCorpus(dir string) ([]models.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var chunks []models.Chunk
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), models.CorpusExtension) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat corpus file: %w", err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		fileChunks, err := parseText(path)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("file", path).Int("chunks", len(fileChunks)).Msg("Parsed corpus file")
		chunks = append(chunks, fileChunks...)
	}
	return chunks, nil
}

func parseText(filePath string) ([]models.Chunk, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}

	paragraphs := SplitParagraphs(string(data))
	chunks := make([]models.Chunk, len(paragraphs))
	for i, p := range paragraphs {
		chunks[i] = models.Chunk{Content: p}
	}
	return chunks, nil
}

// SplitParagraphs splits text on blank lines, trimming each piece and
// dropping the ones left empty. CRLF and lone CR line endings count as LF.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	for _, piece := range strings.Split(text, models.ParagraphSeparator) {
		if p := strings.TrimSpace(piece); p != "" {
			out = append(out, p)
		}
	}
	return out
}
