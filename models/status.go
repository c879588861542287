package models

// PostStatus is the lifecycle state of a post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
	StatusDeleted   PostStatus = "deleted"
	StatusLocked    PostStatus = "locked"
	StatusArchived  PostStatus = "archived"
)

type statusInfo struct {
	name        string
	visible     bool
	editable    bool
	commentable bool
}

var statusTable = map[PostStatus]statusInfo{
	StatusDraft:     {name: "草稿", visible: false, editable: true, commentable: false},
	StatusPublished: {name: "已发布", visible: true, editable: true, commentable: true},
	StatusDeleted:   {name: "已删除", visible: false, editable: false, commentable: false},
	StatusLocked:    {name: "已锁定", visible: true, editable: false, commentable: false},
	StatusArchived:  {name: "已归档", visible: true, editable: false, commentable: false},
}

var transitions = map[PostStatus][]PostStatus{
	StatusDraft:     {StatusPublished, StatusDeleted},
	StatusPublished: {StatusDeleted, StatusLocked, StatusArchived},
	StatusDeleted:   {StatusPublished},
	StatusLocked:    {StatusPublished, StatusDeleted},
	StatusArchived:  {},
}

// Valid reports whether s is a known state.
func (s PostStatus) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// Name returns the localized label.
func (s PostStatus) Name() string {
	return statusTable[s].name
}

func (s PostStatus) Visible() bool     { return statusTable[s].visible }
func (s PostStatus) Editable() bool    { return statusTable[s].editable }
func (s PostStatus) Commentable() bool { return statusTable[s].commentable }

// IsTerminal is true for archived and deleted. Deleted posts can still be restored;
// the flag only matters for scoring and listing.
func (s PostStatus) IsTerminal() bool {
	return s == StatusArchived || s == StatusDeleted
}

// NextValidStates returns a copy of the outgoing transitions of s.
func (s PostStatus) NextValidStates() []PostStatus {
	next := transitions[s]
	out := make([]PostStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether s -> target is in the transition table.
func (s PostStatus) CanTransitionTo(target PostStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ParseStatus maps a status key to its value.
func ParseStatus(v string) (PostStatus, bool) {
	s := PostStatus(v)
	return s, s.Valid()
}
