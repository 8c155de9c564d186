package dispatcher

import (
	"testing"

	"github.com/Guizzs26/sample-outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDispatchTasksArray(t *testing.T) {
	body := []byte(`[{
		"taskId": "T1",
		"sampleId": "S1",
		"region": "mx",
		"platformCreatorId": "C1",
		"messages": [
			{"type": "text", "content": "hola"},
			{"type": "link", "content": "https://example.test/x"}
		]
	}]`)

	tasks, err := ParseDispatchTasks(body)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, "T1", task.TaskID)
	assert.Equal(t, "MX", task.Region, "region is uppercased")
	assert.Equal(t, "C1", task.PlatformCreatorID)
	require.Len(t, task.Messages, 2)
	assert.Equal(t, models.MessageLink, task.Messages[1].Kind)
}

func TestParseDispatchTasksSingleObjectAndSnakeCase(t *testing.T) {
	body := []byte(`{
		"platform_creator_id": "C1",
		"outreach_task_id": "OT1",
		"messages": ["hola"]
	}`)

	tasks, err := ParseDispatchTasks(body)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "C1", tasks[0].PlatformCreatorID)
	assert.Equal(t, "OT1", tasks[0].OutreachTaskID)
	require.Len(t, tasks[0].Messages, 1)
	assert.Equal(t, models.MessageText, tasks[0].Messages[0].Kind)
	assert.Equal(t, "hola", tasks[0].Messages[0].Content)
	assert.NotEmpty(t, tasks[0].TaskID, "missing task id is generated")
}

func TestParseDispatchTasksMetaFallback(t *testing.T) {
	body := []byte(`[{
		"platformCreatorId": "C1",
		"messages": [
			{"type": "text", "content": "", "meta": {"fallbackText": "respaldo"}},
			{"type": "text", "content": "  "}
		]
	}]`)

	tasks, err := ParseDispatchTasks(body)
	require.NoError(t, err)
	require.Len(t, tasks[0].Messages, 1, "empty parts are dropped")
	assert.Equal(t, "respaldo", tasks[0].Messages[0].Content)
}

func TestParseDispatchTasksFatalCases(t *testing.T) {
	cases := map[string][]byte{
		"not json":        []byte("nope"),
		"empty array":     []byte("[]"),
		"no creator":      []byte(`[{"messages":["hola"]}]`),
		"no messages":     []byte(`[{"platformCreatorId":"C1"}]`),
		"all parts empty": []byte(`[{"platformCreatorId":"C1","messages":[{"content":""}]}]`),
	}

	for name, body := range cases {
		_, err := ParseDispatchTasks(body)
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "FATAL:", name)
	}
}

func TestRenderParts(t *testing.T) {
	task := models.DispatchTask{Messages: []models.Message{
		{Kind: models.MessageText, Content: "hola"},
		{Kind: models.MessageLink, Content: "https://example.test/x"},
		{Kind: models.MessageText, Content: " "},
	}}

	parts := RenderParts(task)
	assert.Equal(t, []string{"hola", "https://example.test/x"}, parts)
}
