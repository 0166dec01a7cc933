package kafka_client

import "time"

const (
	KAFKA_TOPIC_REVIEW_SENTIMENT = "review-sentiment" // one event per scored review
)

const (
	MAX_RETRIES      = 3
	RETRY_DELAY      = 250 * time.Millisecond
	FLUSH_TIMEOUT_MS = 5000
)
