// Package events publishes review notifications for downstream consumers.
package events

import (
	"context"
	"time"
)

// ReviewSubmittedQueue is the durable queue review notifications are routed to.
const ReviewSubmittedQueue = "review.submitted"

// ReviewSubmitted is emitted after a review and its movie aggregate commit.
type ReviewSubmitted struct {
	ReviewID    string    `json:"reviewId"`
	MovieID     string    `json:"movieId"`
	UserID      string    `json:"userId"`
	Score       float64   `json:"score"`
	MovieScore  float64   `json:"movieScore"`
	ReviewCount int64     `json:"reviewCount"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Publisher delivers review events. Implementations must be safe for concurrent
// use and return promptly once ctx is done.
type Publisher interface {
	PublishReviewSubmitted(ctx context.Context, event ReviewSubmitted) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishReviewSubmitted(context.Context, ReviewSubmitted) error { return nil }

func (NopPublisher) Close() error { return nil }
