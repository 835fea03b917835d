// Package sse pushes live updates to browsers: new inbox notifications and
// status changes of incidences the user takes part in.
package sse

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"techo_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type EventType string

const (
	EventNotification     EventType = "notification"
	EventIncidenceUpdated EventType = "incidence_updated"
)

// Event is the JSON payload of one server-sent event.
type Event struct {
	Type        EventType `json:"type"`
	IncidenceID uuid.UUID `json:"incidenceId,omitempty"`
	Message     string    `json:"message,omitempty"`
	Data        any       `json:"data,omitempty"`
}

const (
	clientBuffer      = 32
	heartbeatInterval = 25 * time.Second
)

type client struct {
	userID uuid.UUID
	events chan Event
}

// Service fans events out to every open stream of a user.
type Service struct {
	mu        sync.RWMutex
	clients   map[uuid.UUID][]*client
	closed    bool
	heartbeat time.Duration
	log       *logger.Logger
}

func New(log *logger.Logger) *Service {
	return &Service{clients: make(map[uuid.UUID][]*client), heartbeat: heartbeatInterval, log: log}
}

func (s *Service) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c.userID] = append(s.clients[c.userID], c)
	return true
}

// removeClient is a no-op for clients already dropped by Close.
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.clients[c.userID]
	for i, cl := range list {
		if cl != c {
			continue
		}
		list = append(list[:i], list[i+1:]...)
		close(c.events)
		break
	}
	if len(list) == 0 {
		delete(s.clients, c.userID)
	} else {
		s.clients[c.userID] = list
	}
}

// Publish never blocks: a stream whose buffer is full loses the event.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients[userID] {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full, dropping event", "userId", userID, "type", event.Type)
		}
	}
}

// PublishMany sends event once to each distinct user.
func (s *Service) PublishMany(userIDs []uuid.UUID, event Event) {
	seen := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		s.Publish(id, event)
	}
}

func (s *Service) Connected(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Handler streams events to the caller resolved by getUserID. A comment
// line is written every heartbeat so proxies keep the connection open.
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		cl := &client{userID: userID, events: make(chan Event, clientBuffer)}
		if !s.addClient(cl) {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		defer s.removeClient(cl)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()

		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case <-ticker.C:
				_, err := io.WriteString(w, ": ping\n\n")
				return err == nil
			case event, open := <-cl.events:
				if !open {
					return false
				}
				data, err := json.Marshal(event)
				if err != nil {
					s.log.Warn("sse event not serializable", "type", event.Type, "error", err)
					return true
				}
				c.SSEvent(string(event.Type), string(data))
				return true
			}
		})
	}
}

// Close ends every stream and rejects new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, list := range s.clients {
		for _, c := range list {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
