package kafka_client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spacesedan/reelscore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewScoredMessage(t *testing.T) {
	event := models.ReviewScored{
		ReviewID:       12,
		MovieID:        3,
		SentimentScore: 0.82,
		SentimentTier:  "positive",
		Timestamp:      time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}

	msg, err := reviewScoredMessage("review-sentiment", event)
	require.NoError(t, err)

	assert.Equal(t, "review-sentiment", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("3"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "review.scored", string(msg.Headers[0].Value))

	var decoded models.ReviewScored
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestKafkaConfigDefaultTopic(t *testing.T) {
	assert.Equal(t, KAFKA_TOPIC_REVIEW_SENTIMENT, KafkaConfig{Broker: "localhost:29092"}.topic())
	assert.Equal(t, "custom", KafkaConfig{Topic: "custom"}.topic())
}
