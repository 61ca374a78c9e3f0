// Package organize turns a batch of records into a placement plan: it
// matches, classifies and names every record, then hands the byte moves
// to a Placer.
package organize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/zombor/reimburse/internal/classify"
	"github.com/zombor/reimburse/internal/expense"
	"github.com/zombor/reimburse/internal/matching"
	"github.com/zombor/reimburse/internal/naming"
)

// Mode says whether placing a file copies or moves it.
type Mode string

const (
	ModeMove Mode = "move"
	ModeCopy Mode = "copy"
)

// Placer performs the filesystem side of a plan. destination is
// relative to the placer's output root.
type Placer interface {
	Place(ctx context.Context, source, destination string, mode Mode) error
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Placement is one planned move or copy.
type Placement struct {
	Record      *expense.Record `json:"-"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Mode        Mode            `json:"mode"`
	Done        bool            `json:"done"`
	Err         error           `json:"-"`
}

// Assignment records how one group was classified and where it goes.
type Assignment struct {
	Group    expense.Group
	Decision classify.Decision
	Folder   string
}

// Plan is the full outcome of organizing a batch.
type Plan struct {
	Assignments []Assignment
	Placements  []*Placement
	Buckets     map[expense.Bucket][]*expense.Record
}

// Failed returns the placements whose last attempt failed.
func (p *Plan) Failed() []*Placement {
	var failed []*Placement
	for _, pl := range p.Placements {
		if pl.Err != nil {
			failed = append(failed, pl)
		}
	}
	return failed
}

// Organizer plans batches. It keeps no state between calls.
type Organizer struct {
	mode       Mode
	exists     naming.ExistsFunc
	timeSource TimeSource
}

// NewOrganizer creates an Organizer. exists reports destinations that are
// already taken on disk; it may be nil.
func NewOrganizer(mode Mode, exists naming.ExistsFunc) *Organizer {
	return NewOrganizerWithDeps(mode, exists, &defaultTimeSource{})
}

// NewOrganizerWithDeps creates an Organizer with a custom clock for testing
func NewOrganizerWithDeps(mode Mode, exists naming.ExistsFunc, timeSrc TimeSource) *Organizer {
	if mode == "" {
		mode = ModeMove
	}
	return &Organizer{
		mode:       mode,
		exists:     exists,
		timeSource: timeSrc,
	}
}

// Plan groups, classifies and names records without touching any file.
// Groups with no usable date are named with today's date.
func (o *Organizer) Plan(records []*expense.Record) *Plan {
	plan := &Plan{Buckets: make(map[expense.Bucket][]*expense.Record)}
	resolver := naming.NewResolver(o.exists)
	today := o.timeSource.Now().Format(time.DateOnly)

	for _, g := range matching.Match(records) {
		decision := classify.Classify(g)
		date := decision.Date
		if date == "" {
			date = today
		}
		folder := naming.FolderName(g, date)

		for i, rec := range g.Records {
			name := naming.FileName(rec, i+1, g.Len(), date)
			dest := resolver.Resolve(filepath.Join(string(decision.Bucket), folder, name))
			plan.Placements = append(plan.Placements, &Placement{
				Record:      rec,
				Source:      rec.FilePath,
				Destination: dest,
				Mode:        o.mode,
			})
			plan.Buckets[decision.Bucket] = append(plan.Buckets[decision.Bucket], rec)
		}

		plan.Assignments = append(plan.Assignments, Assignment{
			Group:    g,
			Decision: decision,
			Folder:   folder,
		})
	}
	return plan
}

// Apply executes every pending placement in order. A successful placement
// sets the record's FilePath to its destination; a failure is kept on the
// placement and does not stop the rest. Calling Apply again retries only
// the placements that have not succeeded.
func (o *Organizer) Apply(ctx context.Context, plan *Plan, placer Placer) error {
	var errs []error
	for _, p := range plan.Placements {
		if p.Done {
			continue
		}
		if err := ctx.Err(); err != nil {
			p.Err = err
			errs = append(errs, fmt.Errorf("placing %s: %w", p.Source, err))
			continue
		}

		if err := placer.Place(ctx, p.Source, p.Destination, p.Mode); err != nil {
			slog.Error("Failed to place file", "source", p.Source, "destination", p.Destination, "error", err)
			p.Err = err
			errs = append(errs, fmt.Errorf("placing %s: %w", p.Source, err))
			continue
		}

		p.Err = nil
		p.Done = true
		if p.Record != nil {
			p.Record.FilePath = p.Destination
		}
		slog.Info("Placed file", "mode", p.Mode, "source", p.Source, "destination", p.Destination)
	}
	return errors.Join(errs...)
}
