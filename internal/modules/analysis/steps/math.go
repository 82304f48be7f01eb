package steps

// EstimateTokens approximates the token count at four characters per token,
// which is close enough for budget math on English prose.
func EstimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// EstimatePages converts a word count to screenplay pages at 220 words per
// page, rounded up.
func EstimatePages(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + 219) / 220
}
