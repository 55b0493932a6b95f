package storefakes

import (
	"context"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-session-gateway/api"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

var _ sessions.Store = (*FakeStore)(nil)

// FakeStore is an in-memory sessions.Store with call counters and scriptable
// failures.
type FakeStore struct {
	mu      sync.Mutex
	records map[string]sessions.Record

	GetCalls        int
	SaveCalls       int
	InvalidateCalls int

	FailGet        *api.Error
	FailSave       *api.Error
	FailInvalidate *api.Error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{records: make(map[string]sessions.Record)}
}

// Seed places a record in the store without counting as a Save call.
func (s *FakeStore) Seed(record sessions.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.UserID] = record
}

// Record returns the stored record for userID, if any.
func (s *FakeStore) Record(userID string) (sessions.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	return record, ok
}

func (s *FakeStore) Get(_ context.Context, userID string) api.Result[sessions.Record] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++

	if s.FailGet != nil {
		return api.Result[sessions.Record]{Err: s.FailGet}
	}
	record, ok := s.records[userID]
	if !ok {
		return api.Failure[sessions.Record](http.StatusNotFound, "session not found", nil)
	}
	return api.Success(record)
}

func (s *FakeStore) Save(_ context.Context, record sessions.Record) api.Result[api.Ack] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCalls++

	if s.FailSave != nil {
		return api.Result[api.Ack]{Err: s.FailSave}
	}
	s.records[record.UserID] = record
	return api.Success(api.Ack{})
}

func (s *FakeStore) Invalidate(_ context.Context, userID string) api.Result[api.Ack] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InvalidateCalls++

	if s.FailInvalidate != nil {
		return api.Result[api.Ack]{Err: s.FailInvalidate}
	}
	delete(s.records, userID)
	return api.Success(api.Ack{})
}
