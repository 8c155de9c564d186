package broker

import (
	"encoding/json"
	"testing"

	"github.com/Guizzs26/sample-outreach/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyDerivedNames(t *testing.T) {
	topo := Topology{
		Exchange:         "outreach.topic",
		Queue:            "outreach.chatbot",
		RoutingKeyPrefix: "outreach.chatbot",
	}

	assert.Equal(t, "outreach.chatbot.*", topo.BindingKey())
	assert.Equal(t, "outreach.chatbot.batch", topo.PublishKey())
	assert.Equal(t, "outreach.topic.dlx", topo.DeadLetterExchange())
	assert.Equal(t, "outreach.chatbot.dead", topo.DeadLetterQueue())
	assert.Equal(t, "outreach.chatbot.*.dead", topo.DeadLetterRoutingKey())
}

func TestBuildPublishingWrapsTaskInArray(t *testing.T) {
	task := models.DispatchTask{
		TaskID:            "AAAA-1111",
		SampleID:          "s1",
		Region:            "MX",
		PlatformCreatorID: "c1",
		Messages: []models.Message{
			{Kind: models.MessageText, Content: "hola"},
		},
	}

	pub, err := buildPublishing(task)
	require.NoError(t, err)

	assert.Equal(t, "AAAA-1111", pub.MessageId)
	assert.Equal(t, "AAAA-1111", pub.Headers["task_id"])
	assert.Equal(t, int32(1), pub.Headers["task_count"])
	assert.Equal(t, uint8(amqp.Persistent), pub.DeliveryMode)
	assert.Equal(t, "application/json", pub.ContentType)

	var decoded []models.DispatchTask
	require.NoError(t, json.Unmarshal(pub.Body, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, task.TaskID, decoded[0].TaskID)
	assert.Equal(t, "hola", decoded[0].Messages[0].Content)
}

func TestBuildPublishingGeneratesUppercaseID(t *testing.T) {
	pub, err := buildPublishing(models.DispatchTask{SampleID: "s1"})
	require.NoError(t, err)

	require.NotEmpty(t, pub.MessageId)
	assert.Equal(t, pub.MessageId, pub.Headers["task_id"])
	for _, r := range pub.MessageId {
		assert.NotContains(t, "abcdef", string(r))
	}
}

func TestDeliveryIDFallsBackToHeader(t *testing.T) {
	assert.Equal(t, "M1", deliveryID(amqp.Delivery{MessageId: "M1"}))
	assert.Equal(t, "H1", deliveryID(amqp.Delivery{Headers: amqp.Table{"task_id": "H1"}}))
	assert.Equal(t, "", deliveryID(amqp.Delivery{}))
}
