// Package notification reacts to domain events: it stores in-app
// notifications, pushes them over SSE and sends the matching e-mails.
// Domain modules only publish events and never talk to SMTP themselves.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/email"
	"techo_backend/internal/events"
	apphttp "techo_backend/internal/http"
	notifhandler "techo_backend/internal/notification/handler"
	"techo_backend/internal/notification/inapp"
	"techo_backend/internal/notification/sse"
	"techo_backend/platform/httpkit"
	"techo_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Incidence is what notifications need to know about an incidence.
type Incidence struct {
	ID           uuid.UUID
	ReporterID   uuid.UUID
	TechnicianID *uuid.UUID
	Category     string
	Status       string
}

// IncidenceReader loads incidences for message content.
type IncidenceReader interface {
	NotificationIncidence(ctx context.Context, id uuid.UUID) (Incidence, error)
}

// Config provides the links embedded in messages.
type Config interface {
	GetAppBaseURL() string
}

// DigestVisit is one incidence in a technician's visit digest.
type DigestVisit struct {
	IncidenceID uuid.UUID
	Category    string
	Address     string
	Priority    string
	IdleSince   time.Time
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender     email.Sender
	users      authz.UserGetter
	incidences IncidenceReader
	cfg        Config
	inApp      *inapp.Service
	sse        *sse.Service
	handler    *notifhandler.HTTPHandler
	log        *logger.Logger
}

// New creates the notification module. store persists in-app notifications.
func New(store inapp.Store, sender email.Sender, users authz.UserGetter, incidences IncidenceReader, cfg Config, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	sseSvc := sse.New(log)
	inAppSvc := inapp.NewService(store, sseSvc, log)
	return &Module{
		sender:     sender,
		users:      users,
		incidences: incidences,
		cfg:        cfg,
		inApp:      inAppSvc,
		sse:        sseSvc,
		handler:    notifhandler.NewHTTPHandler(inAppSvc),
		log:        log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// SSE returns the live connection registry.
func (m *Module) SSE() *sse.Service { return m.sse }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	m.handler.RegisterRoutes(notifications)
	notifications.GET("/stream", m.sse.Handler(func(c *gin.Context) (uuid.UUID, bool) {
		id, ok := httpkit.GetIdentity(c)
		if !ok {
			return uuid.Nil, false
		}
		return id.UserID(), true
	}))
}

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	events.SubscribeAll(bus, m,
		events.IncidenceAssigned{}.EventName(),
		events.IncidenceStatusChanged{}.EventName(),
		events.IncidenceResolved{}.EventName(),
		events.CommentAdded{}.EventName(),
		events.PosventaFormReviewed{}.EventName(),
	)
}

// Handle routes events to their handlers.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.IncidenceAssigned:
		return m.handleIncidenceAssigned(ctx, e)
	case events.IncidenceStatusChanged:
		return m.handleStatusChanged(ctx, e)
	case events.IncidenceResolved:
		return m.handleIncidenceResolved(ctx, e)
	case events.CommentAdded:
		return m.handleCommentAdded(ctx, e)
	case events.PosventaFormReviewed:
		return m.handlePosventaReviewed(ctx, e)
	default:
		m.log.Warn("notification: unhandled event", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleIncidenceAssigned(ctx context.Context, e events.IncidenceAssigned) error {
	inc, err := m.incidences.NotificationIncidence(ctx, e.IncidenceID)
	if err != nil {
		return err
	}
	m.pushIncidenceUpdate(inc, "Un técnico tomó su incidencia")

	// A technician who claims the incidence already knows about it.
	if e.Claimed {
		return nil
	}
	tech, err := m.users.GetUser(ctx, e.TechnicianID)
	if err != nil {
		return err
	}
	if err := m.inApp.Send(ctx, inapp.Draft{
		UserID:   tech.ID,
		Title:    "Nueva incidencia asignada",
		Body:     fmt.Sprintf("Se le asignó una incidencia de %s.", inc.Category),
		Resource: inapp.IncidenceResource(inc.ID),
	}); err != nil {
		return err
	}
	m.sendEmail("assignment", tech.Email, func() error {
		return m.sender.SendAssignmentNotice(ctx, tech.Email, tech.Name, inc.Category, m.incidenceURL(inc.ID))
	})
	return nil
}

func (m *Module) handleStatusChanged(ctx context.Context, e events.IncidenceStatusChanged) error {
	inc, err := m.incidences.NotificationIncidence(ctx, e.IncidenceID)
	if err != nil {
		return err
	}
	m.pushIncidenceUpdate(inc, fmt.Sprintf("Estado actualizado: %s", e.To))
	return nil
}

func (m *Module) handleIncidenceResolved(ctx context.Context, e events.IncidenceResolved) error {
	inc, err := m.incidences.NotificationIncidence(ctx, e.IncidenceID)
	if err != nil {
		return err
	}
	reporter, err := m.users.GetUser(ctx, e.ReporterID)
	if err != nil {
		return err
	}
	if err := m.inApp.Send(ctx, inapp.Draft{
		UserID:   reporter.ID,
		Title:    "Incidencia resuelta",
		Body:     fmt.Sprintf("Su incidencia de %s fue resuelta. Califique la atención recibida.", inc.Category),
		Resource: inapp.IncidenceResource(inc.ID),
		Level:    inapp.LevelSuccess,
	}); err != nil {
		return err
	}
	m.sendEmail("rating_invitation", reporter.Email, func() error {
		return m.sender.SendRatingInvitation(ctx, reporter.Email, reporter.Name, inc.Category, m.incidenceURL(inc.ID)+"/calificar")
	})
	return nil
}

// handleCommentAdded tells the other party of the incidence that a comment arrived.
func (m *Module) handleCommentAdded(ctx context.Context, e events.CommentAdded) error {
	inc, err := m.incidences.NotificationIncidence(ctx, e.IncidenceID)
	if err != nil {
		return err
	}
	recipients := []uuid.UUID{inc.ReporterID}
	if inc.TechnicianID != nil {
		recipients = append(recipients, *inc.TechnicianID)
	}
	for _, userID := range recipients {
		if userID == e.AuthorID {
			continue
		}
		if err := m.inApp.Send(ctx, inapp.Draft{
			UserID:   userID,
			Title:    "Nuevo comentario",
			Body:     fmt.Sprintf("Hay un nuevo comentario en la incidencia de %s.", inc.Category),
			Resource: inapp.IncidenceResource(inc.ID),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) handlePosventaReviewed(ctx context.Context, e events.PosventaFormReviewed) error {
	submitter, err := m.users.GetUser(ctx, e.SubmittedBy)
	if err != nil {
		return err
	}
	level := inapp.LevelInfo
	if e.Verdict == "rechazada" {
		level = inapp.LevelWarning
	}
	if err := m.inApp.Send(ctx, inapp.Draft{
		UserID:   submitter.ID,
		Title:    "Posventa revisada",
		Body:     "Su formulario de posventa fue revisado.",
		Resource: inapp.PosventaFormResource(e.FormID),
		Level:    level,
	}); err != nil {
		return err
	}
	m.sendEmail("posventa_reviewed", submitter.Email, func() error {
		return m.sender.SendPosventaReviewed(ctx, submitter.Email, submitter.Name, e.Verdict, m.link("/posventa/"+e.FormID.String()))
	})
	return nil
}

// SendVisitDigest e-mails a technician the incidences worth visiting on date.
// Technicians without visits get nothing.
func (m *Module) SendVisitDigest(ctx context.Context, technicianID uuid.UUID, date string, visits []DigestVisit) error {
	if len(visits) == 0 {
		return nil
	}
	tech, err := m.users.GetUser(ctx, technicianID)
	if err != nil {
		return err
	}
	items := make([]email.VisitItem, 0, len(visits))
	for _, v := range visits {
		items = append(items, email.VisitItem{
			Category:  v.Category,
			Address:   v.Address,
			Priority:  v.Priority,
			IdleSince: v.IdleSince,
			URL:       m.incidenceURL(v.IncidenceID),
		})
	}
	if err := m.sender.SendVisitDigest(ctx, tech.Email, tech.Name, date, items); err != nil {
		m.log.UpstreamFailure("smtp", "visit_digest", err)
		return err
	}
	m.log.WithContext(ctx).Info("visit digest sent", "technicianId", technicianID, "visits", len(visits))
	return nil
}

func (m *Module) pushIncidenceUpdate(inc Incidence, message string) {
	recipients := []uuid.UUID{inc.ReporterID}
	if inc.TechnicianID != nil {
		recipients = append(recipients, *inc.TechnicianID)
	}
	m.sse.PublishMany(recipients, sse.Event{
		Type:        sse.EventIncidenceUpdated,
		IncidenceID: inc.ID,
		Message:     message,
		Data:        map[string]any{"status": inc.Status},
	})
}

// sendEmail delivers best effort: the in-app notification is already stored.
func (m *Module) sendEmail(kind, to string, send func() error) {
	if strings.TrimSpace(to) == "" {
		return
	}
	if err := send(); err != nil {
		m.log.UpstreamFailure("smtp", kind, err)
	}
}

func (m *Module) incidenceURL(id uuid.UUID) string {
	return m.link("/incidencias/" + id.String())
}

func (m *Module) link(path string) string {
	return strings.TrimRight(m.cfg.GetAppBaseURL(), "/") + path
}

var _ apphttp.Module = (*Module)(nil)
