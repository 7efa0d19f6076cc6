package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexDash/models"
)

type memoryStore struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (m *memoryStore) CreateRun(ctx context.Context, rec models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "create:"+rec.Id)
	if m.fail {
		return errors.New("disk full")
	}
	return nil
}

func (m *memoryStore) FinishRun(ctx context.Context, rec models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "finish:"+rec.Id+":"+rec.Status)
	return nil
}

func TestRecorderWritesInOrder(t *testing.T) {
	store := &memoryStore{}
	r := NewRecorder(store, nil)
	r.RecordStart(models.RunRecord{Id: "a"})
	r.RecordFinish(models.RunRecord{Id: "a", Status: "completed"})
	r.RecordStart(models.RunRecord{Id: "b"})
	r.Close()

	assert.Equal(t, []string{"create:a", "finish:a:completed", "create:b"}, store.calls)
}

func TestRecorderDropsAfterClose(t *testing.T) {
	store := &memoryStore{fail: true}
	r := NewRecorder(store, nil)
	r.RecordStart(models.RunRecord{Id: "a"})
	r.Close()
	r.Close()
	r.RecordFinish(models.RunRecord{Id: "a"})

	require.Len(t, store.calls, 1)
}
