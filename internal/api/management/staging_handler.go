package management

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CaioWing/harbor-console/internal/api/response"
	"github.com/CaioWing/harbor-console/internal/storage"
)

type StagingHandler struct {
	store   storage.FileStore
	maxSize int64
}

func NewStagingHandler(store storage.FileStore, maxSize int64) *StagingHandler {
	return &StagingHandler{store: store, maxSize: maxSize}
}

// Put stages the raw request body under the given name.
func (h *StagingHandler) Put(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxSize)
	f, err := h.store.Save(chi.URLParam(r, "name"), body)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, f)
}

func (h *StagingHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.List()
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to list staged files")
		return
	}
	if files == nil {
		files = []storage.StagedFile{}
	}
	response.JSON(w, http.StatusOK, files)
}

func (h *StagingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(chi.URLParam(r, "name")); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
