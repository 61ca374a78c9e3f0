package reimburse

import (
	"time"

	"github.com/zombor/reimburse/internal/expense"
	"github.com/zombor/reimburse/internal/organize"
)

// Status is the processing state of a batch
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// File is one uploaded document
type File struct {
	Name        string `json:"name"`
	Path        string `json:"path"` // storage path under uploads/<batch id>
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Batch is a set of uploaded documents organized together
type Batch struct {
	ID         string                `json:"id"`
	Status     Status                `json:"status"`
	Files      []File                `json:"files"`
	Records    []*expense.Record     `json:"records,omitempty"`
	Placements []*organize.Placement `json:"placements,omitempty"`
	Summary    *organize.Summary     `json:"summary,omitempty"`
	Errors     []string              `json:"errors,omitempty"` // per-file failures
	Error      string                `json:"error,omitempty"`  // whole-batch failure
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Finished reports whether processing has ended, successfully or not
func (b *Batch) Finished() bool {
	return b.Status == StatusDone || b.Status == StatusFailed
}

func uploadDir(id string) string {
	return "uploads/" + id
}

func resultDir(id string) string {
	return "results/" + id
}
