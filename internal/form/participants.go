package form

import (
	"slices"

	"bujo/internal/core"
)

// ParticipantSetState holds who a record applies to: already-known
// friends picked from the directory, new friends committed with the
// add action, and the in-progress draft entry. Transitions return a
// fresh value and never alias the receiver's slices.
type ParticipantSetState struct {
	SelectedIDs   []string
	Committed     []core.NewFriend
	DraftName     string
	DraftRelation string
}

// NewParticipantSetState returns the empty initial state.
func NewParticipantSetState() ParticipantSetState {
	return ParticipantSetState{}
}

// ToggleFriend adds the id if absent and removes it if present,
// preserving the selection order of the rest.
func (s ParticipantSetState) ToggleFriend(id string) ParticipantSetState {
	if i := slices.Index(s.SelectedIDs, id); i >= 0 {
		s.SelectedIDs = slices.Delete(slices.Clone(s.SelectedIDs), i, i+1)
		return s
	}
	s.SelectedIDs = append(slices.Clone(s.SelectedIDs), id)
	return s
}

func (s ParticipantSetState) WithDraftName(name string) ParticipantSetState {
	s.DraftName = name
	return s
}

func (s ParticipantSetState) WithDraftRelation(relation string) ParticipantSetState {
	s.DraftRelation = relation
	return s
}

// CommitDraft appends the trimmed draft to the committed list and
// clears the draft fields. It is a no-op while either field is blank,
// so repeated calls against an already-cleared draft do nothing.
func (s ParticipantSetState) CommitDraft() ParticipantSetState {
	if !s.HasPendingDraft() {
		return s
	}
	entry := core.NewFriend{Name: s.DraftName, Relation: s.DraftRelation}.Trimmed()
	s.Committed = append(slices.Clone(s.Committed), entry)
	s.DraftName = ""
	s.DraftRelation = ""
	return s
}

// RemoveCommitted drops the committed entry at the given position.
// Indices are positional, not stable identities: removing index 0
// twice removes two different logical entries.
func (s ParticipantSetState) RemoveCommitted(index int) ParticipantSetState {
	if index < 0 || index >= len(s.Committed) {
		return s
	}
	s.Committed = slices.Delete(slices.Clone(s.Committed), index, index+1)
	return s
}

// HasPendingDraft reports whether the draft alone would make a valid
// entry, which lets the user submit without pressing add.
func (s ParticipantSetState) HasPendingDraft() bool {
	draft := core.NewFriend{Name: s.DraftName, Relation: s.DraftRelation}
	return draft.Validate() == nil
}

// ResolveNewEntries returns every new friend the submission must
// materialize: committed entries in insertion order, then the draft if
// it is independently valid. Read-only; calling it repeatedly without
// intervening transitions yields equal lists.
func (s ParticipantSetState) ResolveNewEntries() []core.NewFriend {
	entries := slices.Clone(s.Committed)
	if s.HasPendingDraft() {
		entries = append(entries, core.NewFriend{Name: s.DraftName, Relation: s.DraftRelation}.Trimmed())
	}
	return entries
}

// TotalPeople is the head count the record will fan out across.
func (s ParticipantSetState) TotalPeople() int {
	n := len(s.SelectedIDs) + len(s.Committed)
	if s.HasPendingDraft() {
		n++
	}
	return n
}
