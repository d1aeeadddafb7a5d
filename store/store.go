package store

import (
	"context"
	"errors"
	"sync"

	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/sirupsen/logrus"
)

var ErrNoSnapshot = errors.New("no snapshot published yet")

// Publisher is the boundary every finished snapshot is handed to
type Publisher interface {
	Publish(ctx context.Context, snapshot *model.Snapshot) error
}

// MemoryStore keeps the latest snapshot and notifies subscribers of new ones
type MemoryStore struct {
	mu          sync.RWMutex
	latest      *model.Snapshot
	subscribers map[int]chan *model.Snapshot
	nextID      int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subscribers: make(map[int]chan *model.Snapshot)}
}

func (s *MemoryStore) Publish(ctx context.Context, snapshot *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snapshot
	for id, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			logrus.WithField("subscriber", id).Debug("Subscriber is lagging, skipping snapshot")
		}
	}
	return nil
}

func (s *MemoryStore) Latest() (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNoSnapshot
	}
	return s.latest, nil
}

// Subscribe returns a channel receiving every published snapshot. A subscriber that falls
// behind by more than buffer snapshots misses the newer ones. Call the returned func to stop.
func (s *MemoryStore) Subscribe(buffer int) (<-chan *model.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *model.Snapshot, buffer)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

type multiPublisher []Publisher

// Multi publishes to every publisher in turn, one failing does not stop the rest
func Multi(publishers ...Publisher) Publisher {
	return multiPublisher(publishers)
}

func (m multiPublisher) Publish(ctx context.Context, snapshot *model.Snapshot) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
