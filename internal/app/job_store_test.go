package app

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"governance_reminder_bot/internal/domain/reminder"
)

type fireLog struct {
	mu   sync.Mutex
	jobs []reminder.Job
}

func (f *fireLog) record(job reminder.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
}

func (f *fireLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func initialJob(key reminder.JobKey, h float64) reminder.Job {
	return reminder.Job{Key: key, FireAt: at(h), Origin: reminder.OriginInitial}
}

func TestJobStoreInsertIsIdempotent(t *testing.T) {
	t.Parallel()
	clock := newManualClock(tStart)
	fired := &fireLog{}
	store := NewJobStore(clock, fired.record, testLogger())
	key := reminder.JobKey{ProposalID: "snapshot:a", RecipientID: 1}

	if !store.Insert(initialJob(key, 1)) {
		t.Fatal("first Insert returned false")
	}
	if store.Insert(initialJob(key, 1)) {
		t.Fatal("duplicate Insert returned true")
	}
	followup := reminder.Job{Key: key, FireAt: at(1), Origin: reminder.OriginFollowup}
	if !store.Insert(followup) {
		t.Fatal("Insert with a different origin should be scheduled")
	}
	if got := store.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	clock.Advance(2 * time.Hour)
	if got := fired.count(); got != 2 {
		t.Fatalf("fired %d jobs, want 2", got)
	}
	if got := store.Len(); got != 0 {
		t.Fatalf("Len() after firing = %d, want 0", got)
	}
}

func TestJobStoreFiresInOrder(t *testing.T) {
	t.Parallel()
	clock := newManualClock(tStart)
	fired := &fireLog{}
	store := NewJobStore(clock, fired.record, testLogger())
	key := reminder.JobKey{ProposalID: "snapshot:a", RecipientID: 1}

	for _, h := range []float64{24, 1, 2} {
		store.Insert(initialJob(key, h))
	}
	if snap := store.Snapshot(key); len(snap) != 3 || !snap[0].FireAt.Equal(at(1)) {
		t.Fatalf("Snapshot = %+v", snap)
	}

	clock.Advance(90 * time.Minute)
	if got := fired.count(); got != 1 {
		t.Fatalf("fired %d jobs after 1.5h, want 1", got)
	}
	clock.Advance(24 * time.Hour)
	fired.mu.Lock()
	defer fired.mu.Unlock()
	want := []time.Time{at(1), at(2), at(24)}
	for i, job := range fired.jobs {
		if !job.FireAt.Equal(want[i]) {
			t.Fatalf("job %d fired for %v, want %v", i, job.FireAt, want[i])
		}
	}
}

func TestJobStoreCancelAll(t *testing.T) {
	t.Parallel()
	clock := newManualClock(tStart)
	fired := &fireLog{}
	store := NewJobStore(clock, fired.record, testLogger())
	key := reminder.JobKey{ProposalID: "snapshot:a", RecipientID: 1}
	other := reminder.JobKey{ProposalID: "snapshot:a", RecipientID: 2}

	store.Insert(initialJob(key, 1))
	store.Insert(initialJob(key, 2))
	store.Insert(initialJob(other, 1))

	if got := store.CancelAll(key); got != 2 {
		t.Fatalf("CancelAll = %d, want 2", got)
	}
	if snap := store.Snapshot(key); len(snap) != 0 {
		t.Fatalf("Snapshot after CancelAll = %+v", snap)
	}
	if got := store.CancelAll(key); got != 0 {
		t.Fatalf("second CancelAll = %d, want 0", got)
	}

	clock.Advance(3 * time.Hour)
	fired.mu.Lock()
	defer fired.mu.Unlock()
	if len(fired.jobs) != 1 || fired.jobs[0].Key != other {
		t.Fatalf("fired = %+v, want only the other recipient's job", fired.jobs)
	}
}

func TestJobStoreReplace(t *testing.T) {
	t.Parallel()
	clock := newManualClock(tStart)
	fired := &fireLog{}
	store := NewJobStore(clock, fired.record, testLogger())
	key := reminder.JobKey{ProposalID: "onchain:7", RecipientID: 1}

	for _, h := range []float64{1, 2, 24} {
		store.Insert(initialJob(key, h))
	}
	followup := reminder.Job{FireAt: at(4), Origin: reminder.OriginFollowup}
	if got := store.Replace(key, followup); got != 3 {
		t.Fatalf("Replace superseded %d jobs, want 3", got)
	}

	snap := store.Snapshot(key)
	if len(snap) != 1 || !snap[0].FireAt.Equal(at(4)) || snap[0].Origin != reminder.OriginFollowup || snap[0].Key != key {
		t.Fatalf("Snapshot after Replace = %+v", snap)
	}

	clock.Advance(30 * time.Hour)
	if got := fired.count(); got != 1 {
		t.Fatalf("fired %d jobs, want 1", got)
	}
}

func TestJobStoreRecipientOperations(t *testing.T) {
	t.Parallel()
	clock := newManualClock(tStart)
	store := NewJobStore(clock, nil, testLogger())

	store.Insert(initialJob(reminder.JobKey{ProposalID: "snapshot:a", RecipientID: 1}, 2))
	store.Insert(initialJob(reminder.JobKey{ProposalID: "snapshot:b", RecipientID: 1}, 1))
	store.Insert(initialJob(reminder.JobKey{ProposalID: "snapshot:a", RecipientID: 2}, 1))

	jobs := store.RecipientJobs(1)
	if len(jobs) != 2 || jobs[0].Key.ProposalID != "snapshot:b" {
		t.Fatalf("RecipientJobs = %+v", jobs)
	}
	if got := store.CancelRecipient(1); got != 2 {
		t.Fatalf("CancelRecipient = %d, want 2", got)
	}
	if got := store.Stop(); got != 1 {
		t.Fatalf("Stop = %d, want 1", got)
	}
	if got := store.Len(); got != 0 {
		t.Fatalf("Len after Stop = %d", got)
	}
}

// A job is either delivered or cancelled, never both, whatever the
// interleaving of its timer and a cancellation.
func TestJobStoreCancelRacesFire(t *testing.T) {
	t.Parallel()
	var delivered atomic.Int64
	done := make(chan struct{}, 1)
	store := NewJobStore(SystemClock{}, func(reminder.Job) {
		delivered.Add(1)
		done <- struct{}{}
	}, testLogger())

	const rounds = 50
	cancelled := 0
	for i := 0; i < rounds; i++ {
		key := reminder.JobKey{ProposalID: "snapshot:race", RecipientID: int64(i)}
		store.Insert(reminder.Job{Key: key, FireAt: time.Now().Add(time.Millisecond), Origin: reminder.OriginInitial})
		time.Sleep(time.Duration(i%3) * 500 * time.Microsecond)

		n := store.CancelAll(key)
		cancelled += n
		if n == 0 {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatalf("round %d: job neither cancelled nor delivered", i)
			}
		}
	}

	time.Sleep(10 * time.Millisecond)
	if total := cancelled + int(delivered.Load()); total != rounds {
		t.Fatalf("cancelled %d + delivered %d = %d, want %d", cancelled, delivered.Load(), total, rounds)
	}
}

// Readers see either the whole initial set (or part of it while it is being
// inserted) or the single follow-up, never a mix of both.
func TestJobStoreReplaceIsAtomicToReaders(t *testing.T) {
	t.Parallel()
	clock := newManualClock(tStart)
	store := NewJobStore(clock, nil, testLogger())
	key := reminder.JobKey{ProposalID: "snapshot:atomic", RecipientID: 1}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var mixed atomic.Int64
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			initial, followups := 0, 0
			for _, j := range store.Snapshot(key) {
				if j.Origin == reminder.OriginFollowup {
					followups++
				} else {
					initial++
				}
			}
			if followups > 1 || (followups == 1 && initial > 0) {
				mixed.Add(1)
			}
		}
	}()

	for i := 0; i < 500; i++ {
		for _, h := range []float64{1, 2, 24} {
			store.Insert(initialJob(key, h))
		}
		store.Replace(key, reminder.Job{FireAt: at(4 + float64(i%7)), Origin: reminder.OriginFollowup})
		store.CancelAll(key)
	}
	close(stop)
	wg.Wait()

	if n := mixed.Load(); n > 0 {
		t.Fatalf("%d snapshots held initial and follow-up jobs together", n)
	}
	if got := store.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0", got)
	}
}
