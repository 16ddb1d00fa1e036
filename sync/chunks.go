package sync

// calculateChunkSize returns the smallest chunk size that splits total chains into at most maxChunks chunks.
// Falls back to a single chunk if no such size exists (for example maxChunks < 1).
func calculateChunkSize(total, maxChunks int) int {
	for size := 1; size <= total; size++ {
		if ceilDiv(total, size) <= maxChunks {
			return size
		}
	}
	return total
}

// chunkIndices partitions [0, total) into consecutive index ranges. The last chunk may be shorter.
func chunkIndices(total, maxChunks int) [][]int {
	if total <= 0 {
		return nil
	}
	size := calculateChunkSize(total, maxChunks)
	chunks := make([][]int, 0, ceilDiv(total, size))
	for start := 0; start < total; start += size {
		end := min(start+size, total)
		chunk := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			chunk = append(chunk, i)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
