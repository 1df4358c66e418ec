// Package dist provides the collective communication groups used for
// distributed data-parallel training.
//
// A Group connects the learner workers of one training run. Every member
// calls AllReduceMean with an equally sized buffer; the call blocks until
// all members have contributed and then overwrites the buffer with the
// element-wise mean.
package dist

import (
	"context"
	"errors"
)

// ErrGroupBroken reports that a member failed or aborted while a collective
// was pending. The group cannot be used afterwards and the error must be
// surfaced to the supervisor; it is never retried.
var ErrGroupBroken = errors.New("distributed group broken")

// Group is a process group for collective operations.
type Group interface {
	// ID identifies the group across members.
	ID() string
	// Rank is this member's index in [0, Size).
	Rank() int
	// Size is the number of members.
	Size() int
	// AllReduceMean replaces buf with the element-wise mean of every
	// member's buf. It blocks without a timeout; cancelling ctx aborts the
	// whole group.
	AllReduceMean(ctx context.Context, buf []float32) error
}

// IsDistributed reports whether g spans more than one member.
func IsDistributed(g Group) bool {
	return g != nil && g.Size() > 1
}
