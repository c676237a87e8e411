package report

import (
	"go.uber.org/atomic"
)

type PublisherErrors struct {
	Publish           atomic.Uint64 `json:"publish"`
	PersistentFailure atomic.Uint64 `json:"persistent"`
}

type PublisherState struct {
	MessagesPublished              atomic.Uint64 `json:"messages_published"`
	LastSuccessfulMessageTimestamp atomic.Int64  `json:"last_successful_message_timestamp"`
}

// Notifications sent to Redis
type PublisherReport struct {
	State  PublisherState  `json:"state"`
	Errors PublisherErrors `json:"errors"`
}
