package handler

import (
	"log/slog"
	"net/http"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// defaultArchivePrefix scopes listing to the archiver's key space.
const defaultArchivePrefix = "archive/"

// ArchiveHandler lists archived snapshot objects in blob storage.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the blob reader.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{blobs: blobs, logger: logger}
}

// listArchivesResponse wraps the archive object listing.
type listArchivesResponse struct {
	Archives []domain.BlobInfo `json:"archives"`
	Count    int               `json:"count"`
}

// ListArchives returns the archived snapshot objects under the given
// prefix, defaulting to the archiver's key space.
// GET /api/archives?prefix=archive/snapshots/2026-07
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = defaultArchivePrefix
	}

	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}

	writeJSON(w, http.StatusOK, listArchivesResponse{
		Archives: infos,
		Count:    len(infos),
	})
}
