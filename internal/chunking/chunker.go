// Package chunking prepares text for embedding by cutting it into
// fixed-size overlapping windows. Windows are byte oriented, not token
// aware: boundaries may split words, which is acceptable for an embedding
// model consuming raw text.
package chunking

const (
	DefaultChunkSize = 2000
	DefaultOverlap   = 200
)

// Split slices text into windows of at most chunkSize bytes where each
// window shares overlap bytes with its predecessor. The window always
// advances by at least one byte, so a degenerate overlap >= chunkSize
// cannot loop forever. Empty text yields no chunks. The chunk's position in
// the returned slice doubles as its stable point id downstream.
func Split(text string, chunkSize, overlap int) []string {
	if text == "" || chunkSize <= 0 {
		return nil
	}

	step := chunkSize - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for offset := 0; offset < len(text); offset += step {
		end := offset + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[offset:end])
	}

	return chunks
}
