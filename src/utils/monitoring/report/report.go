package report

type Report struct {
	Run        *RunReport        `json:"run,omitempty"`
	Indexer    *IndexerReport    `json:"indexer,omitempty"`
	Subscriber *SubscriberReport `json:"subscriber,omitempty"`
	Refunder   *RefunderReport   `json:"refunder,omitempty"`
	Pool       *PoolReport       `json:"pool,omitempty"`
	Publisher  *PublisherReport  `json:"publisher,omitempty"`
}
