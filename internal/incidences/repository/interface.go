package repository

import (
	"context"
	"time"

	"techo_backend/internal/incidences/domain"

	"github.com/google/uuid"
)

// Incidence is a maintenance request against a housing unit.
type Incidence struct {
	ID            uuid.UUID
	ReporterID    uuid.UUID
	TechnicianID  *uuid.UUID
	HousingUnitID uuid.UUID
	Category      string
	Description   string
	ContactPhone  *string
	Priority      domain.Priority
	Status        domain.Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResolvedAt    *time.Time
	ClosedAt      *time.Time
}

// Participants returns the users attached to the incidence.
func (i Incidence) Participants() domain.Participants {
	return domain.Participants{ReporterID: i.ReporterID, TechnicianID: i.TechnicianID}
}

// HistoryEntry is one row of the audit trail.
type HistoryEntry struct {
	ID           int64
	IncidenceID  uuid.UUID
	FromStatus   *domain.Status
	ToStatus     domain.Status
	ActorID      uuid.UUID
	TechnicianID *uuid.UUID
	Note         *string
	CreatedAt    time.Time
}

// Comment is an immutable remark on an incidence.
type Comment struct {
	ID          uuid.UUID
	IncidenceID uuid.UUID
	AuthorID    uuid.UUID
	Body        string
	CreatedAt   time.Time
}

// Media owner kinds.
const (
	MediaOwnerComment   = "comment"
	MediaOwnerIncidence = "incidence"
)

// Media is the metadata of a stored evidence blob.
type Media struct {
	ID           uuid.UUID
	IncidenceID  uuid.UUID
	OwnerKind    string
	OwnerID      uuid.UUID
	Bucket       string
	FileKey      string
	FileName     string
	ContentType  string
	SizeBytes    int64
	ThumbnailKey *string
	CapturedAt   *time.Time
	UploadedBy   uuid.UUID
	CreatedAt    time.Time
}

// TechnicianWorkload is an active technician with the number of incidences
// currently in asignada or en_proceso.
type TechnicianWorkload struct {
	TechnicianID uuid.UUID
	Name         string
	ActiveCount  int
}

// VisitCandidate is an incidence worth visiting together with its location.
type VisitCandidate struct {
	Incidence
	Address   string
	ProjectID uuid.UUID
}

// CreateParams contains parameters for reporting an incidence.
type CreateParams struct {
	ReporterID    uuid.UUID
	HousingUnitID uuid.UUID
	Category      string
	Description   string
	ContactPhone  *string
	Priority      domain.Priority
	At            time.Time
}

// ListParams filters and paginates incidences.
type ListParams struct {
	Status        *domain.Status
	TechnicianID  *uuid.UUID
	HousingUnitID *uuid.UUID
	ReporterID    *uuid.UUID
	Limit         int
	Offset        int
}

// SwapParams describes a compare-and-swap on the status column.
// A nil TechnicianID keeps the current technician.
type SwapParams struct {
	ID           uuid.UUID
	Expected     domain.Status
	Next         domain.Status
	TechnicianID *uuid.UUID
	ActorID      uuid.UUID
	Note         *string
	At           time.Time
}

// CheckFunc validates the locked current row before a write. Returning an
// error aborts the write.
type CheckFunc func(current Incidence) error

// AssignParams sets the technician of a locked incidence.
type AssignParams struct {
	ID           uuid.UUID
	TechnicianID uuid.UUID
	ActorID      uuid.UUID
	At           time.Time
	Check        CheckFunc
}

// TransitionParams moves a locked incidence to To.
type TransitionParams struct {
	ID      uuid.UUID
	To      domain.Status
	ActorID uuid.UUID
	Note    *string
	At      time.Time
	Check   CheckFunc
}

// CommentParams contains parameters for creating a comment.
type CommentParams struct {
	IncidenceID uuid.UUID
	AuthorID    uuid.UUID
	Body        string
	At          time.Time
}

// MediaParams contains parameters for recording a stored blob.
type MediaParams struct {
	IncidenceID  uuid.UUID
	OwnerKind    string
	OwnerID      uuid.UUID
	Bucket       string
	FileKey      string
	FileName     string
	ContentType  string
	SizeBytes    int64
	ThumbnailKey *string
	CapturedAt   *time.Time
	UploadedBy   uuid.UUID
}

// IncidenceReader provides read operations for incidences.
type IncidenceReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Incidence, error)
	List(ctx context.Context, params ListParams) ([]Incidence, int, error)
	History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error)
}

// IncidenceWriter provides the lifecycle writes. Every write appends a
// history row in the same transaction.
type IncidenceWriter interface {
	Create(ctx context.Context, params CreateParams) (Incidence, error)
	// CompareAndSwapStatus updates the row only if its status still equals
	// Expected. It reports false when no row matched.
	CompareAndSwapStatus(ctx context.Context, params SwapParams) (Incidence, bool, error)
	// Assign locks the row, runs Check, sets the technician and moves
	// abierta to asignada. It returns the status held before the write.
	Assign(ctx context.Context, params AssignParams) (Incidence, domain.Status, error)
	// Transition locks the row, runs Check and writes the new status.
	// It returns the status held before the write.
	Transition(ctx context.Context, params TransitionParams) (Incidence, domain.Status, error)
}

// CommentStore persists comments.
type CommentStore interface {
	CreateComment(ctx context.Context, params CommentParams) (Comment, error)
	ListComments(ctx context.Context, incidenceID uuid.UUID) ([]Comment, error)
}

// MediaStore persists media metadata.
type MediaStore interface {
	CreateMedia(ctx context.Context, params MediaParams) (Media, error)
	ListMedia(ctx context.Context, incidenceID uuid.UUID) ([]Media, error)
}

// TechnicianQueries answers routing questions about technicians.
type TechnicianQueries interface {
	TechnicianWorkloads(ctx context.Context) ([]TechnicianWorkload, error)
	SuggestedVisits(ctx context.Context, technicianID uuid.UUID, cutoff time.Time) ([]VisitCandidate, error)
	StatusCounts(ctx context.Context) (map[domain.Status]int, error)
}

// Repository is the full persistence contract of the incidences module.
type Repository interface {
	IncidenceReader
	IncidenceWriter
	CommentStore
	MediaStore
	TechnicianQueries
}
