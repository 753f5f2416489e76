// Package ingest turns the three accepted input shapes (pasted text, a
// remote PDF, a YouTube video) into plain text ready for chunking.
package ingest

// Chunks splits text into overlapping windows. Each chunk except the last
// has length exactly size; the window advances by size-overlap per step so
// neighboring chunks share overlap characters of context. The last chunk
// may be shorter. Concatenating the chunks with the overlap removed
// reconstructs the input exactly.
//
// Pure function of its inputs. An overlap >= size is clamped to size-1 so
// the window always advances.
func Chunks(text string, size, overlap int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	step := size - overlap
	runes := []rune(text)

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
