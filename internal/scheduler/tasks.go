package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskQueueTrigger is enqueued when closing a session frees a staff slot, so
// the worker can assign the next queued visitor to that staff member.
const TaskQueueTrigger = "chat.queue_trigger"

// QueueTriggerPayload identifies the freed staff slot.
type QueueTriggerPayload struct {
	StaffID   string `json:"staffId"`
	ProjectID string `json:"projectId"`
}

func NewQueueTriggerTask(payload QueueTriggerPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQueueTrigger, data), nil
}

func ParseQueueTriggerPayload(task *asynq.Task) (QueueTriggerPayload, error) {
	var payload QueueTriggerPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return QueueTriggerPayload{}, err
	}
	return payload, nil
}
