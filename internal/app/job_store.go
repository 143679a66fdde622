// internal/app/job_store.go
package app

import (
	"sort"
	"sync"
	"sync/atomic"

	"governance_reminder_bot/internal/domain/reminder"
	"governance_reminder_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// FireFunc is invoked, without any store lock held, when a job's timer expires.
type FireFunc func(job reminder.Job)

const (
	jobPending int32 = iota
	jobFired
	jobCancelled
)

// jobIdentity makes re-insertion of the same (fire-time, origin) a no-op.
type jobIdentity struct {
	fireAt int64
	origin reminder.Origin
}

type scheduledJob struct {
	job   reminder.Job
	state atomic.Int32
	timer Timer
}

// cancel moves a pending job to cancelled and stops its timer. It returns
// false when the job already fired or was cancelled.
func (sj *scheduledJob) cancel() bool {
	if !sj.state.CompareAndSwap(jobPending, jobCancelled) {
		return false
	}
	if sj.timer != nil {
		sj.timer.Stop()
	}
	return true
}

// keySlot serializes all operations on one JobKey. A slot removed from the
// store map is marked dead so late lockers retry against a fresh slot.
type keySlot struct {
	mu   sync.Mutex
	dead bool
	jobs map[jobIdentity]*scheduledJob
}

// JobStore owns every pending reminder, grouped by (proposal, recipient).
// Operations on one key are linearizable; different keys only share the
// short map lookup.
type JobStore struct {
	clock  Clock
	fire   FireFunc
	logger *logrus.Entry

	mu    sync.Mutex
	slots map[reminder.JobKey]*keySlot

	pending atomic.Int64
}

func NewJobStore(clock Clock, fire FireFunc, logger *logrus.Entry) *JobStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &JobStore{
		clock:  clock,
		fire:   fire,
		logger: logger,
		slots:  make(map[reminder.JobKey]*keySlot),
	}
}

// lock returns the live slot for key with its mutex held.
func (s *JobStore) lock(key reminder.JobKey) *keySlot {
	for {
		s.mu.Lock()
		slot, ok := s.slots[key]
		if !ok {
			slot = &keySlot{jobs: make(map[jobIdentity]*scheduledJob)}
			s.slots[key] = slot
		}
		s.mu.Unlock()

		slot.mu.Lock()
		if !slot.dead {
			return slot
		}
		slot.mu.Unlock()
	}
}

// unlock releases slot, dropping it from the map when it holds no jobs.
func (s *JobStore) unlock(key reminder.JobKey, slot *keySlot) {
	if len(slot.jobs) == 0 {
		s.mu.Lock()
		if s.slots[key] == slot {
			delete(s.slots, key)
		}
		slot.dead = true
		s.mu.Unlock()
	}
	slot.mu.Unlock()
}

// lookup returns the current slot for key without creating one.
func (s *JobStore) lookup(key reminder.JobKey) (*keySlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[key]
	return slot, ok
}

// Insert schedules job. Re-inserting a job with the same fire-time and origin
// under the same key is a no-op and returns false.
func (s *JobStore) Insert(job reminder.Job) bool {
	slot := s.lock(job.Key)
	defer s.unlock(job.Key, slot)
	return s.insertLocked(slot, job)
}

func (s *JobStore) insertLocked(slot *keySlot, job reminder.Job) bool {
	id := jobIdentity{fireAt: job.FireAt.UnixNano(), origin: job.Origin}
	if _, exists := slot.jobs[id]; exists {
		return false
	}

	sj := &scheduledJob{job: job}
	slot.jobs[id] = sj
	// The callback needs the slot lock we are holding, so it cannot observe
	// sj before the timer field is set.
	sj.timer = s.clock.AfterFunc(job.FireAt.Sub(s.clock.Now()), func() { s.expire(sj, id) })

	s.pending.Add(1)
	metrics.JobsPending.Inc()
	metrics.JobsScheduled.WithLabelValues(string(job.Origin)).Inc()
	return true
}

// expire is the timer callback. The job is claimed and removed under the key
// lock, then delivered after the lock is released.
func (s *JobStore) expire(sj *scheduledJob, id jobIdentity) {
	key := sj.job.Key
	if _, ok := s.lookup(key); !ok {
		return // key already cleared by a cancellation
	}
	slot := s.lock(key)
	current, registered := slot.jobs[id]
	if !registered || current != sj || !sj.state.CompareAndSwap(jobPending, jobFired) {
		s.unlock(key, slot)
		return
	}
	delete(slot.jobs, id)
	s.unlock(key, slot)

	s.pending.Add(-1)
	metrics.JobsPending.Dec()
	metrics.JobsFired.Inc()

	if s.fire != nil {
		s.fire(sj.job)
	}
}

// CancelAll cancels every pending job under key and returns how many were
// cancelled. An empty key is not an error.
func (s *JobStore) CancelAll(key reminder.JobKey) int {
	if _, ok := s.lookup(key); !ok {
		s.logger.WithField("job_key", key.String()).Debug("No pending jobs to cancel")
		return 0
	}
	slot := s.lock(key)
	defer s.unlock(key, slot)
	return s.cancelLocked(slot)
}

func (s *JobStore) cancelLocked(slot *keySlot) int {
	cancelled := 0
	for id, sj := range slot.jobs {
		if sj.cancel() {
			cancelled++
		}
		delete(slot.jobs, id)
	}
	if cancelled > 0 {
		s.pending.Add(int64(-cancelled))
		metrics.JobsPending.Sub(float64(cancelled))
	}
	return cancelled
}

// Replace cancels every pending job under key and schedules job in their
// place. Other callers observe either the old set or {job}, never both.
func (s *JobStore) Replace(key reminder.JobKey, job reminder.Job) int {
	job.Key = key
	slot := s.lock(key)
	defer s.unlock(key, slot)
	cancelled := s.cancelLocked(slot)
	s.insertLocked(slot, job)
	return cancelled
}

// Snapshot returns the pending jobs under key ordered by fire-time.
func (s *JobStore) Snapshot(key reminder.JobKey) []reminder.Job {
	if _, ok := s.lookup(key); !ok {
		return nil
	}
	slot := s.lock(key)
	defer s.unlock(key, slot)
	jobs := make([]reminder.Job, 0, len(slot.jobs))
	for _, sj := range slot.jobs {
		jobs = append(jobs, sj.job)
	}
	sortJobs(jobs)
	return jobs
}

func (s *JobStore) keys() []reminder.JobKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]reminder.JobKey, 0, len(s.slots))
	for k := range s.slots {
		keys = append(keys, k)
	}
	return keys
}

// RecipientJobs returns every pending job of one recipient across proposals.
func (s *JobStore) RecipientJobs(recipientID int64) []reminder.Job {
	var jobs []reminder.Job
	for _, key := range s.keys() {
		if key.RecipientID != recipientID {
			continue
		}
		jobs = append(jobs, s.Snapshot(key)...)
	}
	sortJobs(jobs)
	return jobs
}

// CancelRecipient cancels every pending job of one recipient.
func (s *JobStore) CancelRecipient(recipientID int64) int {
	cancelled := 0
	for _, key := range s.keys() {
		if key.RecipientID == recipientID {
			cancelled += s.CancelAll(key)
		}
	}
	return cancelled
}

// Len is the number of pending jobs.
func (s *JobStore) Len() int {
	return int(s.pending.Load())
}

// Stop cancels every pending job so no timer outlives the store.
func (s *JobStore) Stop() int {
	cancelled := 0
	for _, key := range s.keys() {
		cancelled += s.CancelAll(key)
	}
	if cancelled > 0 {
		metrics.JobsCancelled.WithLabelValues("shutdown").Add(float64(cancelled))
	}
	return cancelled
}

func sortJobs(jobs []reminder.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].FireAt.Equal(jobs[j].FireAt) {
			return jobs[i].Key.ProposalID < jobs[j].Key.ProposalID
		}
		return jobs[i].FireAt.Before(jobs[j].FireAt)
	})
}
