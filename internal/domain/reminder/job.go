// internal/domain/reminder/job.go
package reminder

import (
	"fmt"
	"time"
)

// Origin records why a job was created.
type Origin string

const (
	OriginInitial  Origin = "initial"  // computed from the proposal window
	OriginFollowup Origin = "followup" // "remind me in N hours" button
)

// JobKey groups every pending reminder of one recipient for one proposal.
type JobKey struct {
	ProposalID  string
	RecipientID int64
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s/%d", k.ProposalID, k.RecipientID)
}

// Job is one scheduled reminder firing. It refers to the proposal by id only.
type Job struct {
	Key     JobKey
	FireAt  time.Time
	Origin  Origin
	Trigger Trigger
}

// VoteStatus is passed to the deliverer so it can word the message.
type VoteStatus string

const (
	VoteStatusPending VoteStatus = "PENDING"
	VoteStatusVoted   VoteStatus = "VOTED"
)
