package scheduler

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskGeocodeVerify = "churches.geocode_verify"

type GeocodeVerifyPayload struct {
	ChurchID string `json:"churchId"`
}

func NewGeocodeVerifyTask(payload GeocodeVerifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGeocodeVerify, data), nil
}

func ParseGeocodeVerifyPayload(task *asynq.Task) (GeocodeVerifyPayload, error) {
	var payload GeocodeVerifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return GeocodeVerifyPayload{}, err
	}
	return payload, nil
}

// geocodeVerifyTaskID dedupes pending checks for the same church.
func geocodeVerifyTaskID(churchID uuid.UUID) string {
	return TaskGeocodeVerify + ":" + churchID.String()
}
