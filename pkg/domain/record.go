package domain

import "time"

// Record is a persisted task.
type Record struct {
	ID   string `json:"id"`
	Task string `json:"task"`
	Done bool   `json:"done"`
}

// NewRecord combines an assigned id with the attributes of a create mutation.
func NewRecord(id string, c Create) Record {
	return Record{ID: id, Task: c.Task, Done: c.Done}
}

// Attributes returns the non-key fields as stored alongside the id.
func (r Record) Attributes() Create {
	return Create{Task: r.Task, Done: r.Done}
}

// Status is the terminal outcome of handling one envelope.
type Status string

const (
	// StatusApplied means exactly one store mutation took effect.
	StatusApplied Status = "applied"
	// StatusNoop means a delete targeted an id that was not present.
	StatusNoop Status = "noop"
	// StatusIgnored means the handler received a type it does not apply.
	StatusIgnored Status = "ignored"
	// StatusDropped means no route matched the envelope.
	StatusDropped Status = "dropped"
	// StatusFailed means the store rejected or could not be reached.
	StatusFailed Status = "failed"
)

// Result reports what handling an envelope did, so the caller can decide
// whether to alert or redeliver.
type Result struct {
	Status   Status
	Type     Kind
	EventID  string
	RecordID string
	Err      error
	Duration time.Duration
}

// Failed reports whether the result carries a failure.
func (r Result) Failed() bool { return r.Status == StatusFailed }

