package common

// Answer is the normalized output of one provider call.
// Sources are base domains in citation order; duplicates are kept.
type Answer struct {
	Text         string
	Sources      []string
	InputTokens  int
	OutputTokens int
}
