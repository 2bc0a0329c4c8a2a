package notes

import "fmt"

// ChunksDir is the subdirectory of a session working directory holding
// uploaded audio chunks.
const ChunksDir = "chunks"

// ChunkFileName is the zero-padded name a chunk with seq is stored under so
// lexicographic order matches sequence order.
func ChunkFileName(seq int, ext string) string {
	return fmt.Sprintf("chunk_%06d%s", seq, ext)
}
