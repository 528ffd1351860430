package domain

import (
	"math"
	"time"
)

const (
	// DefaultK is used when a query does not specify k
	DefaultK = 10

	// DefaultMaxK bounds k to protect the engine from pathological requests
	DefaultMaxK = 100
)

// Hit is one ranked document returned by a searcher
type Hit struct {
	DocumentID string  `json:"pid"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// RankedHit is a Hit shaped for the response contract
type RankedHit struct {
	Hit
	Prob float64 `json:"prob"`
}

// SearchResult represents the result of a query against one collection
type SearchResult struct {
	Collection string        `json:"collection"`
	Query      string        `json:"query"`
	K          int           `json:"k"`
	TopK       []RankedHit   `json:"topk"`
	Cached     bool          `json:"cached"`
	Took       time.Duration `json:"took" swaggertype:"integer" example:"1500000"`
}

// RankHits attaches softmax probabilities over the scores while keeping engine order.
func RankHits(hits []Hit) []RankedHit {
	out := make([]RankedHit, len(hits))
	if len(hits) == 0 {
		return out
	}

	// Shift by the max score so exp never overflows
	maxScore := hits[0].Score
	for _, h := range hits[1:] {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	var sum float64
	exps := make([]float64, len(hits))
	for i, h := range hits {
		exps[i] = math.Exp(h.Score - maxScore)
		sum += exps[i]
	}

	for i, h := range hits {
		out[i] = RankedHit{Hit: h, Prob: exps[i] / sum}
	}
	return out
}
