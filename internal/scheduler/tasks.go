package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskPlanConversion = "posventa.plan.convert"

const TaskVisitDigest = "incidences.visit_digest"

type PlanConversionPayload struct {
	PlanID string `json:"planId"`
}

type VisitDigestPayload struct {
	TechnicianID string `json:"technicianId"`
	Date         string `json:"date"`
}

func NewPlanConversionTask(payload PlanConversionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPlanConversion, data), nil
}

func ParsePlanConversionPayload(task *asynq.Task) (PlanConversionPayload, error) {
	var payload PlanConversionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PlanConversionPayload{}, err
	}
	return payload, nil
}

func NewVisitDigestTask(payload VisitDigestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVisitDigest, data), nil
}

func ParseVisitDigestPayload(task *asynq.Task) (VisitDigestPayload, error) {
	var payload VisitDigestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return VisitDigestPayload{}, err
	}
	return payload, nil
}
