package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopcore/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/shop/topics/events", TopicResourceName("shop", "events"))
	assert.Equal(t, "projects/other/topics/events", TopicResourceName("shop", "projects/other/topics/events"))
	assert.Empty(t, TopicResourceName("", "events"))
	assert.Empty(t, TopicResourceName("shop", "  "))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{DomainTopic: "events"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "shop"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errNoDomainTopic)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.DomainPublisher())
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
