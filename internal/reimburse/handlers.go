package reimburse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/zombor/reimburse/internal/report"
)

const (
	maxFormSize = int64(200 << 20) // whole batch
	maxFileSize = int64(50 << 20)  // high-resolution phone photos

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// lookupError maps service errors onto status codes
func lookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		corsError(w, "Batch not found", http.StatusNotFound)
	case errors.Is(err, ErrBusy), errors.Is(err, ErrNotReady):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Batch request failed", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func attachment(name string) string {
	return "attachment; filename=\"report.xlsx\"; filename*=UTF-8''" + url.PathEscape(name)
}

// handleHealth reports liveness without authentication
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListBatches returns a list of all batches
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListBatches()
	if err != nil {
		slog.Error("Error listing batches", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if batches == nil {
		batches = []*Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// handleCreateBatch accepts one or more documents under the "files" form
// field (or a single "file") and starts processing them
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "Upload is too large. Maximum batch size is 200MB."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["files"]...)
	headers = append(headers, r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		jsonError(w, "No files were selected. Please choose at least one file to upload.", http.StatusBadRequest)
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, header := range headers {
		if header.Size > maxFileSize {
			jsonError(w, fmt.Sprintf("%s is too large. Maximum size is 50MB.", header.Filename), http.StatusBadRequest)
			return
		}
		data, err := readPart(header)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			return
		}
		uploads = append(uploads, Upload{
			Name:        header.Filename,
			Data:        data,
			ContentType: header.Header.Get("Content-Type"),
		})
	}

	batch, err := s.service.Submit(uploads)
	if err != nil {
		slog.Error("Error creating batch", "files", len(uploads), "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Location", "/api/batches/"+batch.ID)
	writeJSON(w, http.StatusAccepted, batch)
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// handleGetBatch returns a single batch
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.service.GetBatch(r.PathValue("id"))
	if err != nil {
		lookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// handleDeleteBatch deletes a batch with its files
func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBatch(r.PathValue("id")); err != nil {
		lookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetReport downloads the XLSX report
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.GetReport(r.PathValue("id"))
	if err != nil {
		lookupError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", attachment(report.FileName))
	w.Write(data)
}

// handleGetArchive downloads the organized files as a zip
func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Look the batch up first so errors still get a proper status
	if _, err := s.service.finishedBatch(id); err != nil {
		lookupError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, id))
	if err := s.service.WriteArchive(id, w); err != nil {
		slog.Error("Error writing archive", "id", id, "error", err)
	}
}
