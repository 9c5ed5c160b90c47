package domain

import "time"

// VoteRecord is one immutable entry of the vote journal. Amount is signed:
// positive for stake added, negative for stake withdrawn. Probability is
// the target outcome's probability after the rebalance that this action
// caused. Records are append-only and removed only by question cascade.
type VoteRecord struct {
	ID          string
	QuestionID  string
	UserID      string
	Outcome     string
	Amount      float64
	Probability float64
	CreatedAt   time.Time
}
