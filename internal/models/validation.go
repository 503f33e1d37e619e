package models

// Layer identifies one acceptance check in the validation chain.
type Layer string

const (
	LayerLexical  Layer = "lexical"
	LayerLength   Layer = "length"
	LayerSemantic Layer = "semantic"
	LayerJudge    Layer = "judge"
)

// IsValid checks if the Layer is a valid value
func (l Layer) IsValid() bool {
	return l == LayerLexical || l == LayerLength || l == LayerSemantic || l == LayerJudge
}

// DefaultLayerOrder runs the cheapest, most deterministic checks first.
func DefaultLayerOrder() []Layer {
	return []Layer{LayerLexical, LayerLength, LayerSemantic, LayerJudge}
}

// RejectReason names why a candidate was discarded.
type RejectReason string

const (
	RejectGeneration RejectReason = "generation_error"
	RejectDuplicate  RejectReason = "duplicate_question"
	RejectLexical    RejectReason = "lexical_overlap"
	RejectLength     RejectReason = "answer_too_short"
	RejectSemantic   RejectReason = "semantic_similarity"
	RejectJudge      RejectReason = "judge_verdict"
	RejectInternal   RejectReason = "internal_error"
)

// LayerResult records one layer's verdict. Score carries the continuous
// measure where the layer has one (overlap ratio, cosine similarity);
// Scored is false for binary layers.
type LayerResult struct {
	Layer  Layer   `json:"layer"`
	Passed bool    `json:"passed"`
	Score  float64 `json:"score,omitempty"`
	Scored bool    `json:"-"`
}

// Outcome is the validation verdict for a candidate. Rejection is a
// control-flow outcome, not an error: the run continues with the next
// chunk. Layers holds results for every layer that ran; the chain
// short-circuits on first failure.
type Outcome struct {
	Accepted bool          `json:"accepted"`
	Reason   RejectReason  `json:"reason,omitempty"`
	Layers   []LayerResult `json:"layers"`
}
