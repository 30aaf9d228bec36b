package cartsync

import (
	"fmt"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

// LineState tracks one line's reconciliation with the remote store.
type LineState string

const (
	StateSynced       LineState = "synced"
	StatePendingWrite LineState = "pending_write"
	StateReverting    LineState = "reverting"
)

type transition struct{ from, to LineState }

var allowedTransitions = map[transition]bool{
	{StateSynced, StatePendingWrite}:    true,
	{StatePendingWrite, StateSynced}:    true,
	{StatePendingWrite, StateReverting}: true,
	{StateReverting, StateSynced}:       true,
}

// Transition returns the next state or an error when the move is not allowed.
func (s LineState) Transition(to LineState) (LineState, error) {
	if !allowedTransitions[transition{s, to}] {
		return s, fmt.Errorf("cart line cannot move from %s to %s", s, to)
	}
	return to, nil
}

// Line is a cart row as the session currently believes it to be.
type Line struct {
	models.CartLineItem
	State LineState `json:"state"`
}

func (l *Line) move(to LineState) error {
	next, err := l.State.Transition(to)
	if err != nil {
		return err
	}
	l.State = next
	return nil
}

// Notice tells the caller what to surface after a mutation.
type Notice string

const (
	NoticeNone Notice = ""
	// NoticeSyncConflict means the line changed remotely and the cart was reloaded.
	NoticeSyncConflict Notice = "sync_conflict"
	// NoticeRetry means the write failed and local state was reverted.
	NoticeRetry Notice = "retry"
)

// Outcome is the result of a cart mutation. Err is informational; the session
// has already reconciled local state when it is set.
type Outcome struct {
	Notice Notice `json:"notice,omitempty"`
	Err    error  `json:"-"`
}

func (o Outcome) OK() bool {
	return o.Err == nil
}
