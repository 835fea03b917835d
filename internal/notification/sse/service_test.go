package sse

import (
	"testing"

	"techo_backend/platform/logger"

	"github.com/google/uuid"
)

func TestPublishReachesEveryConnectionOfUser(t *testing.T) {
	s := New(logger.Discard())
	user := uuid.New()
	a := &client{userID: user, events: make(chan Event, 1)}
	b := &client{userID: user, events: make(chan Event, 1)}
	other := &client{userID: uuid.New(), events: make(chan Event, 1)}
	s.addClient(a)
	s.addClient(b)
	s.addClient(other)

	s.Publish(user, Event{Type: EventNotification, Message: "hola"})

	for _, c := range []*client{a, b} {
		select {
		case e := <-c.events:
			if e.Message != "hola" {
				t.Fatalf("unexpected event %+v", e)
			}
		default:
			t.Fatal("expected event on every connection")
		}
	}
	if len(other.events) != 0 {
		t.Fatal("event leaked to another user")
	}
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	s := New(logger.Discard())
	user := uuid.New()
	c := &client{userID: user, events: make(chan Event, 1)}
	s.addClient(c)

	s.Publish(user, Event{Type: EventNotification})
	s.Publish(user, Event{Type: EventNotification})

	if len(c.events) != 1 {
		t.Fatalf("expected one buffered event, got %d", len(c.events))
	}
}

func TestRemoveClientAfterClose(t *testing.T) {
	s := New(logger.Discard())
	user := uuid.New()
	c := &client{userID: user, events: make(chan Event, 1)}
	s.addClient(c)
	s.Close()
	s.removeClient(c)

	if n := s.Connected(user); n != 0 {
		t.Fatalf("expected no connections, got %d", n)
	}
}

func TestPublishManyDeduplicates(t *testing.T) {
	s := New(logger.Discard())
	user := uuid.New()
	c := &client{userID: user, events: make(chan Event, 4)}
	s.addClient(c)

	s.PublishMany([]uuid.UUID{user, uuid.Nil, user}, Event{Type: EventIncidenceUpdated})

	if len(c.events) != 1 {
		t.Fatalf("expected a single event, got %d", len(c.events))
	}
}

func TestClosedServiceRejectsClients(t *testing.T) {
	s := New(logger.Discard())
	s.Close()
	if s.addClient(&client{userID: uuid.New(), events: make(chan Event, 1)}) {
		t.Fatal("expected closed service to reject new clients")
	}
}
