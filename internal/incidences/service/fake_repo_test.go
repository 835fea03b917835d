package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"techo_backend/internal/incidences/domain"
	"techo_backend/internal/incidences/repository"
	"techo_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu        sync.Mutex
	incidents map[uuid.UUID]repository.Incidence
	history   map[uuid.UUID][]repository.HistoryEntry
	comments  map[uuid.UUID][]repository.Comment
	media     []repository.Media
	serves    map[uuid.UUID]map[uuid.UUID]bool // technician -> projects
	units     map[uuid.UUID]HousingUnit
	names     map[uuid.UUID]string
	failMedia bool
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		incidents: map[uuid.UUID]repository.Incidence{},
		history:   map[uuid.UUID][]repository.HistoryEntry{},
		comments:  map[uuid.UUID][]repository.Comment{},
		serves:    map[uuid.UUID]map[uuid.UUID]bool{},
		units:     map[uuid.UUID]HousingUnit{},
		names:     map[uuid.UUID]string{},
	}
}

// HousingUnit lets the fake double as the housing reader.
func (f *fakeRepo) HousingUnit(_ context.Context, id uuid.UUID) (HousingUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return HousingUnit{}, apperr.NotFound("housing unit not found")
	}
	return u, nil
}

func (f *fakeRepo) addUnit(beneficiaryID uuid.UUID) HousingUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := HousingUnit{ID: uuid.New(), ProjectID: uuid.New(), BeneficiaryID: &beneficiaryID, Address: "Pasaje Los Aromos 123"}
	f.units[u.ID] = u
	return u
}

func (f *fakeRepo) serve(technicianID, projectID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.serves[technicianID] == nil {
		f.serves[technicianID] = map[uuid.UUID]bool{}
	}
	f.serves[technicianID][projectID] = true
}

// put stores an incidence directly, bypassing the lifecycle.
func (f *fakeRepo) put(inc repository.Incidence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents[inc.ID] = inc
}

func (f *fakeRepo) status(id uuid.UUID) domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.incidents[id].Status
}

func (f *fakeRepo) appendHistory(inc repository.Incidence, from *domain.Status, actorID uuid.UUID, note *string, at time.Time) {
	f.nextID++
	f.history[inc.ID] = append(f.history[inc.ID], repository.HistoryEntry{
		ID:           f.nextID,
		IncidenceID:  inc.ID,
		FromStatus:   from,
		ToStatus:     inc.Status,
		ActorID:      actorID,
		TechnicianID: inc.TechnicianID,
		Note:         note,
		CreatedAt:    at,
	})
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Incidence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc, ok := f.incidents[id]
	if !ok {
		return repository.Incidence{}, apperr.NotFound("incidence not found")
	}
	return inc, nil
}

func (f *fakeRepo) List(_ context.Context, p repository.ListParams) ([]repository.Incidence, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Incidence
	for _, inc := range f.incidents {
		if p.Status != nil && inc.Status != *p.Status {
			continue
		}
		if p.ReporterID != nil && inc.ReporterID != *p.ReporterID {
			continue
		}
		if p.TechnicianID != nil && (inc.TechnicianID == nil || *inc.TechnicianID != *p.TechnicianID) {
			continue
		}
		if p.HousingUnitID != nil && inc.HousingUnitID != *p.HousingUnitID {
			continue
		}
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	total := len(out)
	if p.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[p.Offset:]
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, total, nil
}

func (f *fakeRepo) History(_ context.Context, id uuid.UUID) ([]repository.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.HistoryEntry(nil), f.history[id]...), nil
}

func (f *fakeRepo) Create(_ context.Context, p repository.CreateParams) (repository.Incidence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc := repository.Incidence{
		ID:            uuid.New(),
		ReporterID:    p.ReporterID,
		HousingUnitID: p.HousingUnitID,
		Category:      p.Category,
		Description:   p.Description,
		ContactPhone:  p.ContactPhone,
		Priority:      p.Priority,
		Status:        domain.StatusOpen,
		CreatedAt:     p.At,
		UpdatedAt:     p.At,
	}
	f.incidents[inc.ID] = inc
	f.appendHistory(inc, nil, p.ReporterID, nil, p.At)
	return inc, nil
}

func (f *fakeRepo) CompareAndSwapStatus(_ context.Context, p repository.SwapParams) (repository.Incidence, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc, ok := f.incidents[p.ID]
	if !ok || inc.Status != p.Expected {
		return repository.Incidence{}, false, nil
	}
	if p.Expected == domain.StatusOpen && inc.TechnicianID != nil {
		return repository.Incidence{}, false, nil
	}
	from := inc.Status
	inc.Status = p.Next
	if p.TechnicianID != nil {
		tech := *p.TechnicianID
		inc.TechnicianID = &tech
	}
	inc.UpdatedAt = p.At
	f.incidents[inc.ID] = inc
	f.appendHistory(inc, &from, p.ActorID, p.Note, p.At)
	return inc, true, nil
}

func (f *fakeRepo) Assign(_ context.Context, p repository.AssignParams) (repository.Incidence, domain.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc, ok := f.incidents[p.ID]
	if !ok {
		return repository.Incidence{}, "", apperr.NotFound("incidence not found")
	}
	if p.Check != nil {
		if err := p.Check(inc); err != nil {
			return repository.Incidence{}, "", err
		}
	}
	from := inc.Status
	tech := p.TechnicianID
	inc.TechnicianID = &tech
	if inc.Status == domain.StatusOpen {
		inc.Status = domain.StatusAssigned
	}
	inc.UpdatedAt = p.At
	f.incidents[inc.ID] = inc
	f.appendHistory(inc, &from, p.ActorID, nil, p.At)
	return inc, from, nil
}

func (f *fakeRepo) Transition(_ context.Context, p repository.TransitionParams) (repository.Incidence, domain.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inc, ok := f.incidents[p.ID]
	if !ok {
		return repository.Incidence{}, "", apperr.NotFound("incidence not found")
	}
	if p.Check != nil {
		if err := p.Check(inc); err != nil {
			return repository.Incidence{}, "", err
		}
	}
	from := inc.Status
	inc.Status = p.To
	inc.UpdatedAt = p.At
	switch p.To {
	case domain.StatusResolved:
		at := p.At
		inc.ResolvedAt = &at
	case domain.StatusClosed:
		at := p.At
		inc.ClosedAt = &at
	case domain.StatusInProgress:
		inc.ResolvedAt = nil
	}
	f.incidents[inc.ID] = inc
	f.appendHistory(inc, &from, p.ActorID, p.Note, p.At)
	return inc, from, nil
}

func (f *fakeRepo) CreateComment(_ context.Context, p repository.CommentParams) (repository.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := repository.Comment{ID: uuid.New(), IncidenceID: p.IncidenceID, AuthorID: p.AuthorID, Body: p.Body, CreatedAt: p.At}
	f.comments[p.IncidenceID] = append(f.comments[p.IncidenceID], c)
	return c, nil
}

func (f *fakeRepo) ListComments(_ context.Context, id uuid.UUID) ([]repository.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.Comment(nil), f.comments[id]...), nil
}

func (f *fakeRepo) CreateMedia(_ context.Context, p repository.MediaParams) (repository.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMedia {
		return repository.Media{}, apperr.Internal("media insert failed")
	}
	m := repository.Media{
		ID:           uuid.New(),
		IncidenceID:  p.IncidenceID,
		OwnerKind:    p.OwnerKind,
		OwnerID:      p.OwnerID,
		Bucket:       p.Bucket,
		FileKey:      p.FileKey,
		FileName:     p.FileName,
		ContentType:  p.ContentType,
		SizeBytes:    p.SizeBytes,
		ThumbnailKey: p.ThumbnailKey,
		CapturedAt:   p.CapturedAt,
		UploadedBy:   p.UploadedBy,
		CreatedAt:    time.Now(),
	}
	f.media = append(f.media, m)
	return m, nil
}

func (f *fakeRepo) ListMedia(_ context.Context, id uuid.UUID) ([]repository.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Media
	for _, m := range f.media {
		if m.IncidenceID == id {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) TechnicianWorkloads(_ context.Context) ([]repository.TechnicianWorkload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[uuid.UUID]int{}
	for id := range f.names {
		counts[id] = 0
	}
	for _, inc := range f.incidents {
		if inc.TechnicianID != nil && inc.Status.IsActiveWork() {
			counts[*inc.TechnicianID]++
		}
	}
	out := make([]repository.TechnicianWorkload, 0, len(counts))
	for id, n := range counts {
		out = append(out, repository.TechnicianWorkload{TechnicianID: id, Name: f.names[id], ActiveCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActiveCount != out[j].ActiveCount {
			return out[i].ActiveCount < out[j].ActiveCount
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].TechnicianID.String() < out[j].TechnicianID.String()
	})
	return out, nil
}

func (f *fakeRepo) SuggestedVisits(_ context.Context, technicianID uuid.UUID, cutoff time.Time) ([]repository.VisitCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.VisitCandidate
	for _, inc := range f.incidents {
		if inc.TechnicianID == nil || *inc.TechnicianID != technicianID || !inc.Status.IsActiveWork() {
			continue
		}
		if !inc.UpdatedAt.Before(cutoff) {
			continue
		}
		unit := f.units[inc.HousingUnitID]
		if !f.serves[technicianID][unit.ProjectID] {
			continue
		}
		out = append(out, repository.VisitCandidate{Incidence: inc, Address: unit.Address, ProjectID: unit.ProjectID})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

func (f *fakeRepo) StatusCounts(_ context.Context) (map[domain.Status]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[domain.Status]int{}
	for _, inc := range f.incidents {
		out[inc.Status]++
	}
	return out, nil
}

var _ repository.Repository = (*fakeRepo)(nil)
