package mqtt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vigil-fl/vigil/pkg/mqtt"
)

func TestTopicsResolve(t *testing.T) {
	topics := mqtt.NewTopics("chan-1")

	assert.Equal(t, "channels/chan-1/messages/#", topics.Wildcard())
	assert.Equal(t, "channels/chan-1/messages/control/agent/create", topics.AgentCreate())
	assert.Equal(t, "channels/chan-1/messages/control/agent/alive", topics.AgentAlive())
	assert.Equal(t, "channels/chan-1/messages/fl/updates", topics.Updates())
	assert.Equal(t, "channels/chan-1/messages/fl/rounds", topics.Rounds())
	assert.Equal(t, "channels/chan-1/messages/vitals", topics.Vitals())
	assert.Equal(t, "channels/chan-1/messages/drift/alerts", topics.Alerts())
	assert.Equal(t, "channels/chan-1/messages/control/coordinator/disconnected", topics.Disconnected("coordinator"))
}

func TestTopicsSubtopic(t *testing.T) {
	topics := mqtt.NewTopics("chan-1")

	sub, ok := topics.Subtopic("channels/chan-1/messages/fl/updates")
	assert.True(t, ok)
	assert.Equal(t, mqtt.SubUpdates, sub)

	_, ok = topics.Subtopic("channels/other/messages/fl/updates")
	assert.False(t, ok)
}
