package story

// Status is the lifecycle state of a story project.
//
// The wizard only ever moves DRAFT -> PUBLISHED. ARCHIVED and DELETED are
// administrative end-states.
type Status int

const (
	StatusDraft     Status = 1
	StatusPublished Status = 2
	StatusArchived  Status = 3
	StatusDeleted   Status = 4
)

var statusKeys = map[Status]string{
	StatusDraft:     "draft",
	StatusPublished: "published",
	StatusArchived:  "archived",
	StatusDeleted:   "deleted",
}

var statusLabels = map[Status]string{
	StatusDraft:     "Draft",
	StatusPublished: "Published",
	StatusArchived:  "Archived",
	StatusDeleted:   "Deleted",
}

func (s Status) Key() string {
	return statusKeys[s]
}

func (s Status) Label() string {
	return statusLabels[s]
}

// Valid reports whether the value is a known status.
func (s Status) Valid() bool {
	_, ok := statusKeys[s]
	return ok
}
