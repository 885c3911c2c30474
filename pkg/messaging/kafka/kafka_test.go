package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyedMessage struct{ id string }

func (m keyedMessage) PartitionKey() string { return m.id }

func TestNewKafkaBrokerRequiresBrokers(t *testing.T) {
	_, err := NewKafkaBroker(Config{}, nil)
	assert.ErrorContains(t, err, "brokers")
}

func TestNewKafkaBrokerDefaults(t *testing.T) {
	b, err := NewKafkaBroker(Config{Brokers: []string{"localhost:9092"}}, nil)
	require.NoError(t, err)

	kb := b.(*KafkaBroker)
	assert.Equal(t, "medapp", kb.cfg.GroupID)
	assert.Positive(t, kb.cfg.WriteTimeout)
	assert.NoError(t, b.Close())
}

func TestMessageKey(t *testing.T) {
	assert.Equal(t, "apt-1", messageKey(keyedMessage{id: "apt-1"}))
	assert.Empty(t, messageKey(map[string]string{"id": "apt-1"}))
}
