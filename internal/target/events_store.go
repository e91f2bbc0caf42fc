package target

import (
	"context"
	"sync"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

// EventsStore is an in-memory stand-in for "the external events store"
// spec §4.1.c treats as a collaborator: it holds API-destination and
// connection resources by ARN, exactly like LocalStack's events_stores
// dict keyed by (account, region) in api_destination_target.py. Populated
// out-of-band (by an operator, a test, or a thin management endpoint) since
// managing destinations/connections is an EventBridge concern, not a Pipes
// one — this emulator only needs to read them.
type EventsStore struct {
	mu            sync.RWMutex
	destinations  map[string]*Destination
	connections   map[string]*Connection
}

func NewEventsStore() *EventsStore {
	return &EventsStore{
		destinations: make(map[string]*Destination),
		connections:  make(map[string]*Connection),
	}
}

func (s *EventsStore) PutDestination(arn string, d *Destination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destinations[arn] = d
}

func (s *EventsStore) PutConnection(arn string, c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[arn] = c
}

func (s *EventsStore) ResolveDestination(ctx context.Context, destinationArn string) (*Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.destinations[destinationArn]
	if !ok {
		return nil, pipes.NewNotFoundError("api destination %s does not exist", destinationArn)
	}
	return d, nil
}

func (s *EventsStore) ResolveConnection(ctx context.Context, connectionArn string) (*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[connectionArn]
	if !ok {
		return nil, nil
	}
	return c, nil
}

var _ DestinationResolver = (*EventsStore)(nil)
var _ ConnectionResolver = (*EventsStore)(nil)
