package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xelth-com/spectraq/internal/storage"
)

// JobStatus is the lifecycle of an archive write
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobSaved   JobStatus = "SAVED"
	JobFailed  JobStatus = "FAILED"
)

// ErrJobNotFound is returned for unknown archive job ids
var ErrJobNotFound = errors.New("report job not found")

// JobState is the indexed view of a job
type JobState struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId,omitempty"`
	FileName  string    `json:"fileName"`
	Path      string    `json:"path"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	SizeBytes int       `json:"sizeBytes"`
	Findings  Findings  `json:"findings"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobIndex persists job states
type JobIndex interface {
	Put(ctx context.Context, state JobState) error
	Get(ctx context.Context, id string) (JobState, error)
}

// Job is a handle on one asynchronous write
type Job struct {
	ID       string
	FileName string
	Path     string

	done chan struct{}
	mu   sync.Mutex
	err  error
}

// Done is closed once the write finished either way
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err reports the write failure, valid after Done
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Archive writes rendered reports to disk without holding up the response
type Archive struct {
	store *storage.LocalStorage
	index JobIndex
	wg    sync.WaitGroup
}

// NewArchive creates an archive. A nil index keeps job states in memory.
func NewArchive(store *storage.LocalStorage, index JobIndex) *Archive {
	if index == nil {
		index = NewMemoryIndex()
	}
	return &Archive{store: store, index: index}
}

// Submit schedules data to be written under name. The returned job already
// knows its final path.
func (a *Archive) Submit(name string, data []byte, findings Findings) (*Job, error) {
	path, err := a.store.Path(name)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", name, err)
	}

	job := &Job{
		ID:       uuid.New().String(),
		FileName: name,
		Path:     path,
		done:     make(chan struct{}),
	}

	now := time.Now().UTC()
	state := JobState{
		ID:        job.ID,
		RecordID:  findings.RecordID,
		FileName:  name,
		Path:      path,
		Status:    JobPending,
		SizeBytes: len(data),
		Findings:  findings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.index.Put(context.Background(), state); err != nil {
		log.Printf("⚠️ Failed to index report job %s: %v", job.ID, err)
	}

	payload := make([]byte, len(data))
	copy(payload, data)

	a.wg.Add(1)
	go a.write(job, state, payload)
	return job, nil
}

func (a *Archive) write(job *Job, state JobState, data []byte) {
	defer a.wg.Done()
	defer close(job.done)

	_, err := a.store.WriteFile(job.FileName, data)

	state.UpdatedAt = time.Now().UTC()
	if err != nil {
		log.Printf("❌ Failed to persist report %s: %v", job.FileName, err)
		state.Status = JobFailed
		state.Error = err.Error()
	} else {
		state.Status = JobSaved
	}

	job.mu.Lock()
	job.err = err
	job.mu.Unlock()

	if err := a.index.Put(context.Background(), state); err != nil {
		log.Printf("⚠️ Failed to update report job %s: %v", job.ID, err)
	}
}

// Job looks up a job state by id
func (a *Archive) Job(ctx context.Context, id string) (JobState, error) {
	return a.index.Get(ctx, id)
}

// Wait blocks until every submitted write finished
func (a *Archive) Wait() {
	a.wg.Wait()
}

// MemoryIndex keeps job states in a map
type MemoryIndex struct {
	mu   sync.RWMutex
	jobs map[string]JobState
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{jobs: make(map[string]JobState)}
}

func (m *MemoryIndex) Put(ctx context.Context, state JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[state.ID] = state
	return nil
}

func (m *MemoryIndex) Get(ctx context.Context, id string) (JobState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.jobs[id]
	if !ok {
		return JobState{}, ErrJobNotFound
	}
	return state, nil
}
