// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/google/uuid"

	"techo_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Incidence Domain Events
// =============================================================================

// IncidenceReported is published when a beneficiary reports a new incidence.
type IncidenceReported struct {
	BaseEvent
	IncidenceID   uuid.UUID `json:"incidenceId"`
	ReporterID    uuid.UUID `json:"reporterId"`
	HousingUnitID uuid.UUID `json:"housingUnitId"`
	Category      string    `json:"category"`
}

func (e IncidenceReported) EventName() string { return "incidences.incidence.reported" }

// IncidenceAssigned is published after a successful claim or supervisor assignment.
type IncidenceAssigned struct {
	BaseEvent
	IncidenceID  uuid.UUID `json:"incidenceId"`
	TechnicianID uuid.UUID `json:"technicianId"`
	ActorID      uuid.UUID `json:"actorId"`
	Claimed      bool      `json:"claimed"`
}

func (e IncidenceAssigned) EventName() string { return "incidences.incidence.assigned" }

// IncidenceStatusChanged is published for every accepted status transition.
type IncidenceStatusChanged struct {
	BaseEvent
	IncidenceID uuid.UUID `json:"incidenceId"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	ActorID     uuid.UUID `json:"actorId"`
}

func (e IncidenceStatusChanged) EventName() string { return "incidences.incidence.status_changed" }

// IncidenceResolved is published when an incidence reaches resuelta.
// Notification uses it to invite the reporter to rate the technician.
type IncidenceResolved struct {
	BaseEvent
	IncidenceID  uuid.UUID `json:"incidenceId"`
	ReporterID   uuid.UUID `json:"reporterId"`
	TechnicianID uuid.UUID `json:"technicianId"`
}

func (e IncidenceResolved) EventName() string { return "incidences.incidence.resolved" }

// CommentAdded is published after a comment is persisted.
type CommentAdded struct {
	BaseEvent
	IncidenceID uuid.UUID `json:"incidenceId"`
	CommentID   uuid.UUID `json:"commentId"`
	AuthorID    uuid.UUID `json:"authorId"`
	MediaCount  int       `json:"mediaCount"`
}

func (e CommentAdded) EventName() string { return "incidences.comment.added" }

// =============================================================================
// Rating, Housing and Posventa Domain Events
// =============================================================================

// RatingCreated is published when a beneficiary rates a technician.
type RatingCreated struct {
	BaseEvent
	RatingID     uuid.UUID `json:"ratingId"`
	IncidenceID  uuid.UUID `json:"incidenceId"`
	TechnicianID uuid.UUID `json:"technicianId"`
	Score        int       `json:"score"`
}

func (e RatingCreated) EventName() string { return "ratings.rating.created" }

// HousingUnitDelivered is published once per unit when it is handed over.
type HousingUnitDelivered struct {
	BaseEvent
	HousingUnitID uuid.UUID `json:"housingUnitId"`
	ProjectID     uuid.UUID `json:"projectId"`
	ActorID       uuid.UUID `json:"actorId"`
}

func (e HousingUnitDelivered) EventName() string { return "housing.unit.delivered" }

// PosventaPlanAttached is published when a plan document is stored for a form.
type PosventaPlanAttached struct {
	BaseEvent
	FormID       uuid.UUID `json:"formId"`
	PlanID       uuid.UUID `json:"planId"`
	SourceFormat string    `json:"sourceFormat"`
}

func (e PosventaPlanAttached) EventName() string { return "posventa.plan.attached" }

// PosventaFormReviewed is published when a form reaches revisada.
type PosventaFormReviewed struct {
	BaseEvent
	FormID      uuid.UUID `json:"formId"`
	SubmittedBy uuid.UUID `json:"submittedBy"`
	Verdict     string    `json:"verdict"`
}

func (e PosventaFormReviewed) EventName() string { return "posventa.form.reviewed" }
