package ocr

import "unicode"

// shortTextLength is the rune count under which output is penalized as
// likely garbage.
const shortTextLength = 30

// ScoreText rates OCR output plausibility in [0, 1]: the share of letter
// runes, scaled down by 0.3 for very short output. Empty text scores 0.
func ScoreText(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}

	alpha := 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			alpha++
		}
	}

	ratio := float64(alpha) / float64(len(runes))
	if len(runes) < shortTextLength {
		ratio *= 0.3
	}

	return ratio
}
