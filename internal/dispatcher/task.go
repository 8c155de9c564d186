package dispatcher

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Guizzs26/sample-outreach/internal/broker"
	"github.com/Guizzs26/sample-outreach/internal/models"
)

// ParseDispatchTasks decodes a broker payload into dispatch tasks. The wire
// form is a JSON array of tasks; a single bare object is accepted too since
// older producers sent that. Field names come in both camelCase and
// snake_case depending on the producer, so normalization works over a loose
// map rather than struct tags.
func ParseDispatchTasks(body []byte) ([]models.DispatchTask, error) {
	var rawList []map[string]any
	if err := json.Unmarshal(body, &rawList); err != nil {
		var single map[string]any
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return nil, fmt.Errorf("FATAL: invalid dispatch payload: %v", err)
		}
		rawList = []map[string]any{single}
	}

	if len(rawList) == 0 {
		return nil, fmt.Errorf("FATAL: dispatch payload has no tasks")
	}

	tasks := make([]models.DispatchTask, 0, len(rawList))
	for i, raw := range rawList {
		task, err := normalizeTask(raw)
		if err != nil {
			return nil, fmt.Errorf("FATAL: task %d: %v", i, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func normalizeTask(raw map[string]any) (models.DispatchTask, error) {
	msgs := normalizeMessages(raw["messages"])
	if len(msgs) == 0 {
		return models.DispatchTask{}, fmt.Errorf("messages is required")
	}

	creatorID := firstString(raw, "platformCreatorId", "platform_creator_id", "creatorId", "creator_id")
	if creatorID == "" {
		return models.DispatchTask{}, fmt.Errorf("platformCreatorId is required")
	}

	taskID := firstString(raw, "taskId", "task_id")
	if taskID == "" {
		taskID = broker.NewTaskID()
	}

	return models.DispatchTask{
		TaskID:            taskID,
		OutreachTaskID:    firstString(raw, "outreachTaskId", "outreach_task_id"),
		SampleID:          firstString(raw, "sampleId", "sample_id"),
		Region:            strings.ToUpper(firstString(raw, "region")),
		PlatformCreatorID: creatorID,
		PlatformProductID: firstString(raw, "platformProductId", "platform_product_id", "productId", "product_id"),
		AccountName:       firstString(raw, "accountName", "account_name"),
		OperatorID:        firstString(raw, "operatorId", "operator_id"),
		Messages:          msgs,
	}, nil
}

// normalizeMessages accepts a list, a single object, or bare strings. Parts
// without content fall back to meta.fallbackText; parts that stay empty are
// dropped.
func normalizeMessages(value any) []models.Message {
	var items []any
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	case string:
		items = []any{v}
	default:
		return nil
	}

	var msgs []models.Message
	for _, item := range items {
		switch part := item.(type) {
		case string:
			if content := strings.TrimSpace(part); content != "" {
				msgs = append(msgs, models.Message{Kind: models.MessageText, Content: content})
			}
		case map[string]any:
			content := strings.TrimSpace(firstString(part, "content"))
			if content == "" {
				if meta, ok := part["meta"].(map[string]any); ok {
					content = strings.TrimSpace(firstString(meta, "fallbackText", "fallback_text"))
				}
			}
			if content == "" {
				continue
			}
			kind := models.MessageKind(firstString(part, "type"))
			if kind == "" {
				kind = models.MessageText
			}
			msgs = append(msgs, models.Message{Kind: kind, Content: content})
		}
	}
	return msgs
}

// RenderParts flattens a task's messages into the raw strings typed into the
// chat input, in order. Link parts are sent as plain text; the chat UI
// auto-links them.
func RenderParts(task models.DispatchTask) []string {
	parts := make([]string, 0, len(task.Messages))
	for _, m := range task.Messages {
		if content := strings.TrimSpace(m.Content); content != "" {
			parts = append(parts, content)
		}
	}
	return parts
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
