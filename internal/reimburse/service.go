package reimburse

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/reimburse/internal/expense"
	"github.com/zombor/reimburse/internal/extract"
	"github.com/zombor/reimburse/internal/organize"
	"github.com/zombor/reimburse/internal/report"
	"github.com/zombor/reimburse/internal/scanning"
)

const defaultWorkers = 2

var (
	// ErrBusy is returned when deleting a batch that is still being processed
	ErrBusy = errors.New("batch is still processing")
	// ErrNotReady is returned when a batch has no results to download
	ErrNotReady = errors.New("batch has no results")

	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique IDs for batches
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Upload is one document received for a new batch
type Upload struct {
	Name        string
	Data        []byte
	ContentType string
}

// Service handles batch operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	extractor   *extract.Extractor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sem    chan struct{}
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		db:          db,
		scanner:     scanner,
		extractor:   extract.New(),
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
		ctx:         ctx,
		cancel:      cancel,
		sem:         make(chan struct{}, defaultWorkers),
	}
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length. Letters of any script are kept.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if r := []rune(base); len(r) > 50 {
		base = string(r[:50])
	}
	if base == "" {
		base = "document"
	}

	return base + ext
}

// CreateBatch stores the uploads and records a pending batch. It does not
// scan anything; see Submit and ProcessBatch.
func (s *Service) CreateBatch(uploads []Upload) (*Batch, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	batch := &Batch{
		ID:        id,
		Status:    StatusPending,
		Files:     make([]File, 0, len(uploads)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	for i, u := range uploads {
		name := sanitizeFilename(u.Name)
		if !expense.Supported(name) {
			s.discardUploads(id)
			return nil, fmt.Errorf("unsupported file type: %s", u.Name)
		}
		contentType := strings.ToLower(strings.TrimSpace(u.ContentType))
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = expense.ContentType(name)
		}

		// The index prefix keeps identically named uploads apart
		path, err := s.storage.Save(fmt.Sprintf("%s/%03d_%s", uploadDir(id), i+1, name), u.Data)
		if err != nil {
			s.discardUploads(id)
			return nil, fmt.Errorf("saving file: %w", err)
		}
		batch.Files = append(batch.Files, File{
			Name:        name,
			Path:        path,
			ContentType: contentType,
			Size:        len(u.Data),
		})
	}

	if err := s.db.SaveBatch(batch); err != nil {
		s.discardUploads(id)
		return nil, fmt.Errorf("saving batch to database: %w", err)
	}

	slog.Info("Batch created", "id", id, "files", len(batch.Files))
	return batch, nil
}

func (s *Service) discardUploads(id string) {
	if !s.storage.Exists(uploadDir(id)) {
		return
	}
	if err := s.storage.Delete(uploadDir(id)); err != nil {
		slog.Warn("Failed to clean up uploads", "id", id, "error", err)
	}
}

// Submit creates a batch and processes it in the background
func (s *Service) Submit(uploads []Upload) (*Batch, error) {
	batch, err := s.CreateBatch(uploads)
	if err != nil {
		return nil, err
	}
	s.processAsync(batch.ID)
	return batch, nil
}

// Resume restarts every batch left unfinished by a previous run
func (s *Service) Resume() error {
	batches, err := s.db.ListBatches()
	if err != nil {
		return fmt.Errorf("listing batches: %w", err)
	}
	for _, b := range batches {
		if b.Finished() {
			continue
		}
		slog.Info("Resuming batch", "id", b.ID, "status", b.Status)
		s.processAsync(b.ID)
	}
	return nil
}

func (s *Service) processAsync(id string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return
		}
		defer func() { <-s.sem }()

		if _, err := s.ProcessBatch(s.ctx, id); err != nil {
			slog.Error("Failed to process batch", "id", id, "error", err)
		}
	}()
}

// Wait blocks until all background processing has finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops background processing and waits for it to wind down
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// ProcessBatch scans every file of a batch, organizes the results into
// results/<id> and writes the report. Files that fail to scan are still
// organized, as unrecognized documents.
func (s *Service) ProcessBatch(ctx context.Context, id string) (*Batch, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}

	batch.Status = StatusProcessing
	batch.Error = ""
	batch.Errors = nil
	batch.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveBatch(batch); err != nil {
		return nil, fmt.Errorf("saving batch: %w", err)
	}

	// A previous run may have left partial results behind
	root := resultDir(id)
	if s.storage.Exists(root) {
		if err := s.storage.Delete(root); err != nil {
			return s.fail(batch, fmt.Errorf("clearing results: %w", err))
		}
	}

	records := make([]*expense.Record, 0, len(batch.Files))
	for _, f := range batch.Files {
		if err := ctx.Err(); err != nil {
			return s.fail(batch, err)
		}
		rec := s.scanFile(ctx, batch, f)
		records = append(records, &rec)
	}

	organizer := organize.NewOrganizerWithDeps(organize.ModeCopy, func(p string) bool {
		return s.storage.Exists(filepath.Join(root, p))
	}, s.timeSource)
	plan := organizer.Plan(records)
	if err := organizer.Apply(ctx, plan, &rootedPlacer{storage: s.storage, root: root}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s.fail(batch, ctxErr)
		}
		for _, p := range plan.Failed() {
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", p.Source, p.Err))
		}
	}

	summary := organize.Summarize(plan.Buckets)
	now := s.timeSource.Now()
	xlsx, err := report.Bytes(summary, now)
	if err != nil {
		return s.fail(batch, fmt.Errorf("building report: %w", err))
	}
	if _, err := s.storage.Save(filepath.Join(root, report.FileName), xlsx); err != nil {
		return s.fail(batch, fmt.Errorf("saving report: %w", err))
	}

	batch.Records = records
	batch.Placements = plan.Placements
	batch.Summary = &summary
	batch.Status = StatusDone
	batch.UpdatedAt = now
	if err := s.db.SaveBatch(batch); err != nil {
		return nil, fmt.Errorf("saving batch: %w", err)
	}

	slog.Info("Batch processed",
		"id", id,
		"files", len(batch.Files),
		"invoices", summary.Count,
		"total", summary.Total.StringFixed(2),
		"errors", len(batch.Errors),
	)
	return batch, nil
}

func (s *Service) scanFile(ctx context.Context, batch *Batch, f File) expense.Record {
	data, err := s.storage.Get(f.Path)
	if err != nil {
		slog.Error("Failed to read upload", "batch", batch.ID, "path", f.Path, "error", err)
		batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", f.Name, err))
		rec := scanning.Unrecognized(err)
		rec.FilePath = f.Path
		return rec
	}

	rec, err := s.scanner.ScanDocument(ctx, data, f.ContentType)
	if err != nil {
		slog.Error("Failed to scan document",
			"batch", batch.ID,
			"filename", f.Name,
			"content_type", f.ContentType,
			"file_size", len(data),
			"error", err,
		)
		batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", f.Name, err))
		rec = scanning.Unrecognized(err)
	}

	rec = s.extractor.Fill(rec.RawText, rec)
	rec.FilePath = f.Path
	return rec
}

func (s *Service) fail(batch *Batch, cause error) (*Batch, error) {
	batch.Status = StatusFailed
	batch.Error = cause.Error()
	batch.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveBatch(batch); err != nil {
		return nil, errors.Join(cause, fmt.Errorf("saving batch: %w", err))
	}
	return batch, cause
}

// rootedPlacer places files below one directory of the storage
type rootedPlacer struct {
	storage Storage
	root    string
}

func (p *rootedPlacer) Place(ctx context.Context, source, destination string, mode organize.Mode) error {
	return p.storage.Place(ctx, source, filepath.Join(p.root, destination), mode)
}

// GetBatch retrieves a batch by ID
func (s *Service) GetBatch(id string) (*Batch, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns all batches
func (s *Service) ListBatches() ([]*Batch, error) {
	batches, err := s.db.ListBatches()
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	return batches, nil
}

// DeleteBatch removes a finished batch and all of its files
func (s *Service) DeleteBatch(id string) error {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return fmt.Errorf("getting batch for deletion: %w", err)
	}
	if !batch.Finished() {
		return ErrBusy
	}

	for _, dir := range []string{uploadDir(id), resultDir(id)} {
		if !s.storage.Exists(dir) {
			continue
		}
		if err := s.storage.Delete(dir); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete files", "path", dir, "error", err)
		}
	}

	if err := s.db.DeleteBatch(id); err != nil {
		return fmt.Errorf("deleting batch from database: %w", err)
	}
	return nil
}

// GetReport returns the XLSX report of a processed batch
func (s *Service) GetReport(id string) ([]byte, error) {
	batch, err := s.finishedBatch(id)
	if err != nil {
		return nil, err
	}
	data, err := s.storage.Get(filepath.Join(resultDir(batch.ID), report.FileName))
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return data, nil
}

// WriteArchive writes the organized results of a batch to w as a zip
func (s *Service) WriteArchive(id string, w io.Writer) error {
	batch, err := s.finishedBatch(id)
	if err != nil {
		return err
	}
	fsys, err := s.storage.FS(resultDir(batch.ID))
	if err != nil {
		return fmt.Errorf("opening results: %w", err)
	}

	zw := zip.NewWriter(w)
	if err := zw.AddFS(fsys); err != nil {
		zw.Close()
		return fmt.Errorf("writing archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

func (s *Service) finishedBatch(id string) (*Batch, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	if batch.Status != StatusDone {
		return nil, ErrNotReady
	}
	return batch, nil
}
