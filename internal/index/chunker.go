package index

import "fmt"

// Chunk splits text into fixed-size sliding windows of runes. Consecutive
// windows share overlap runes; the last window may be shorter. Text no
// longer than size yields exactly one chunk. Chunking is deterministic:
// the same text, size and overlap always produce the same windows.
func Chunk(text string, size, overlap int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ChunkID derives the stable identity of a chunk from its source and index.
func ChunkID(sourceKey string, idx int) string {
	return fmt.Sprintf("%s_chunk_%d", sourceKey, idx)
}
