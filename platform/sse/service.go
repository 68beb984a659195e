// Package sse provides Server-Sent Events streams keyed by topic.
package sse

import (
	"encoding/json"
	"sync"

	"lightchurch_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const clientBuffer = 32

// Event is one message pushed to the clients of a topic.
type Event struct {
	Type string
	Data interface{}
}

// Sequenced is implemented by payloads carrying a revision that grows with
// every change. A client drops queued events whose revision is not newer
// than the one in its initial event.
type Sequenced interface {
	Sequence() uint64
}

type client struct {
	topic  uuid.UUID
	events chan Event
}

// Service fans events out to every client subscribed to a topic.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client
	log     *logger.Logger
}

func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.topic] = append(s.clients[c.topic], c)
}

// removeClient unregisters c and closes its channel, unless CloseTopic
// already did.
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.topic]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.topic] = append(clients[:i], clients[i+1:]...)
			if len(s.clients[c.topic]) == 0 {
				delete(s.clients, c.topic)
			}
			close(c.events)
			return
		}
	}
}

// Publish sends an event to every client of topic. Slow clients drop events.
func (s *Service) Publish(topic uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients[topic] {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full, dropping event", "topic", topic, "event", event.Type)
		}
	}
}

// Subscribers returns the number of clients connected to topic.
func (s *Service) Subscribers(topic uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[topic])
}

// CloseTopic disconnects every client of topic.
func (s *Service) CloseTopic(topic uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.clients[topic] {
		close(c.events)
	}
	delete(s.clients, topic)
}

// Handler streams a topic. topicOf resolves the topic from the request and
// returns false to reject it; initial, when set, produces the first event.
func (s *Service) Handler(topicOf func(*gin.Context) (uuid.UUID, bool), initial func(uuid.UUID) (Event, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		topic, ok := topicOf(c)
		if !ok {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream;charset=utf-8")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{topic: topic, events: make(chan Event, clientBuffer)}
		s.addClient(cl)
		defer s.removeClient(cl)

		var floor uint64
		var hasFloor bool
		if initial != nil {
			if event, ok := initial(topic); ok {
				s.write(c, event)
				if seq, ok := event.Data.(Sequenced); ok {
					floor, hasFloor = seq.Sequence(), true
				}
			}
		}
		c.Writer.Flush()

		s.log.Debug("sse client connected", "topic", topic)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "topic", topic)
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				if seq, isSeq := event.Data.(Sequenced); hasFloor && isSeq && seq.Sequence() <= floor {
					continue
				}
				s.write(c, event)
				c.Writer.Flush()
			}
		}
	}
}

func (s *Service) write(c *gin.Context, event Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		s.log.Error("sse marshal failed", "event", event.Type, "error", err)
		return
	}
	c.SSEvent(event.Type, string(data))
}

// Close disconnects every client.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for topic, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
		delete(s.clients, topic)
	}
}
