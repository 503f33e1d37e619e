package chunker

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Segmenter splits raw text into ordered sentence strings.
type Segmenter interface {
	Segment(text string) []string
}

// punktSegmenter wraps the Punkt sentence tokenizer. Punkt is trained
// on abbreviation and boundary statistics, so it survives "Dr.",
// "e.g." and decimal points where a naive period split would not.
type punktSegmenter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewSegmenter creates a Punkt-backed sentence segmenter.
func NewSegmenter() (Segmenter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentence tokenizer: %w", err)
	}
	return &punktSegmenter{tokenizer: tokenizer}, nil
}

func (p *punktSegmenter) Segment(text string) []string {
	tokens := p.tokenizer.Tokenize(text)

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		sentence := strings.TrimSpace(token.Text)
		if sentence == "" {
			continue
		}
		result = append(result, sentence)
	}
	return result
}
