// Package inapp stores the notifications shown in the web inbox and pushes
// each new one to the recipient's open SSE streams.
package inapp

import (
	"time"

	"github.com/google/uuid"
)

// Level drives the colour of the inbox entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
)

func (l Level) valid() bool {
	switch l {
	case LevelInfo, LevelSuccess, LevelWarning:
		return true
	}
	return false
}

// Resource points at the entity a notification is about.
type Resource struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// IncidenceResource links to an incidence.
func IncidenceResource(id uuid.UUID) *Resource {
	return &Resource{Type: "incidence", ID: id}
}

// PosventaFormResource links to a posventa form.
func PosventaFormResource(id uuid.UUID) *Resource {
	return &Resource{Type: "posventa_form", ID: id}
}

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"userId"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Resource  *Resource  `json:"resource,omitempty"`
	Level     Level      `json:"level"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Draft is a notification before it is stored.
type Draft struct {
	UserID   uuid.UUID
	Title    string
	Body     string
	Resource *Resource
	Level    Level
}

// Page is one slice of a user's inbox, newest first.
type Page struct {
	Items []Notification `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}
