// internal/domain/proposal/proposal.go
package proposal

import (
	"strings"
	"time"
)

// SourceKind tells which governance source produced a proposal.
type SourceKind string

const (
	SourceSnapshot SourceKind = "snapshot" // off-chain, polled from the Snapshot hub
	SourceOnChain  SourceKind = "onchain"  // ProposalInitialized logs on the voting contract
)

// Proposal is a single governance item up for vote. It is created once per
// distinct on-the-wire proposal and never updated in place.
type Proposal struct {
	ID         string // namespaced, e.g. "snapshot:0xabc" or "onchain:12"
	Source     SourceKind
	ExternalID string // identifier as the source knows it
	ShortID    string // 8 chars, used in button callback data
	Title      string
	Body       string
	Link       string
	Start      time.Time
	End        time.Time
	CreatedAt  time.Time
}

// NamespacedID builds the globally unique identifier for a source-local id.
func NamespacedID(kind SourceKind, externalID string) string {
	return string(kind) + ":" + strings.TrimSpace(externalID)
}

// OpenAt reports whether voting is still running at t.
func (p Proposal) OpenAt(t time.Time) bool {
	return p.End.After(t)
}
