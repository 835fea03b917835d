// Package domain provides core business rules for the incidences bounded context.
package domain

import (
	"strings"

	"techo_backend/internal/authz"
	"techo_backend/platform/apperr"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an incidence.
type Status string

const (
	StatusOpen       Status = "abierta"
	StatusAssigned   Status = "asignada"
	StatusInProgress Status = "en_proceso"
	StatusResolved   Status = "resuelta"
	StatusClosed     Status = "cerrada"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusOpen, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed}

// ParseStatus returns the Status for s, or false when s is not a known status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed:
		return st, true
	default:
		return "", false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool { return s == StatusClosed }

// RequiresTechnician reports whether an incidence in s must have a technician.
func (s Status) RequiresTechnician() bool { return s != StatusOpen }

// IsActiveWork reports whether s counts towards a technician's workload.
func (s Status) IsActiveWork() bool { return s == StatusAssigned || s == StatusInProgress }

// IsRateable reports whether a rating may be attached in s.
func (s Status) IsRateable() bool { return s == StatusResolved || s == StatusClosed }

// Policy holds the configurable parts of the lifecycle.
type Policy struct {
	AllowReopen bool
}

// edges lists the transitions reachable through updateStatus. abierta ->
// asignada is deliberately absent: only claim and assign set a technician.
var edges = map[Status][]Status{
	StatusAssigned:   {StatusInProgress},
	StatusInProgress: {StatusResolved},
	StatusResolved:   {StatusClosed},
}

// CanTransition reports whether from -> to is a permitted status update.
func (p Policy) CanTransition(from, to Status) bool {
	if p.AllowReopen && from == StatusResolved && to == StatusInProgress {
		return true
	}
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns InvalidTransition unless from -> to is permitted.
func (p Policy) ValidateTransition(from, to Status) error {
	if !p.CanTransition(from, to) {
		return apperr.InvalidTransition(string(from), string(to))
	}
	return nil
}

// Participants are the users attached to an incidence.
type Participants struct {
	ReporterID   uuid.UUID
	TechnicianID *uuid.UUID
}

// IsAssignedTechnician reports whether actorID is the incidence's technician.
func (p Participants) IsAssignedTechnician(actorID uuid.UUID) bool {
	return p.TechnicianID != nil && *p.TechnicianID == actorID
}

// AuthorizeTransition checks who may move an incidence away from from.
// Work states belong to the assigned technician; resuelta belongs to the
// reporter, who closes or reopens. Administrators may do either.
func AuthorizeTransition(from Status, inc Participants, actorID uuid.UUID, role authz.Role) error {
	if role.IsAdmin() {
		return nil
	}
	switch from {
	case StatusAssigned, StatusInProgress:
		if role.IsTechnician() && inc.IsAssignedTechnician(actorID) {
			return nil
		}
		return apperr.Forbidden("only the assigned technician may update this incidence")
	case StatusResolved:
		if inc.ReporterID == actorID {
			return nil
		}
		return apperr.Forbidden("only the reporter may close or reopen this incidence")
	default:
		return apperr.Forbidden("status update not permitted")
	}
}

// CanComment reports whether actorID may comment on or attach media to the incidence.
func CanComment(inc Participants, actorID uuid.UUID, role authz.Role) bool {
	switch {
	case role.CanAssign():
		return true
	case inc.ReporterID == actorID:
		return true
	case role.IsTechnician() && inc.IsAssignedTechnician(actorID):
		return true
	default:
		return false
	}
}

// CanView reports whether actorID may read the incidence.
func CanView(inc Participants, actorID uuid.UUID, role authz.Role) bool {
	if role.IsStaff() {
		return true
	}
	return inc.ReporterID == actorID
}
