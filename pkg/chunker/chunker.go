package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when the size/overlap pair cannot produce a
// terminating sequence of windows.
var ErrInvalidParams = errors.New("chunker: invalid parameters")

// Chunk splits text into overlapping windows of size runes, advancing
// size-overlap runes per step. The final window may be shorter. Empty text
// yields an empty result. Requires 0 < overlap < size.
//
// Input truncation and capping the number of chunks consumed downstream are
// caller policies, not enforced here.
func Chunk(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidParams, size)
	}
	if overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in (0, %d)", ErrInvalidParams, overlap, size)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return []string{}, nil
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)-1)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks, nil
}
