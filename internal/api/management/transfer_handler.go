package management

import (
	"encoding/json"
	"net/http"

	"github.com/CaioWing/harbor-console/internal/api/middleware"
	"github.com/CaioWing/harbor-console/internal/api/response"
	"github.com/CaioWing/harbor-console/internal/service"
)

type TransferHandler struct {
	transfers *service.TransferService
}

func NewTransferHandler(transfers *service.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// startRequest names either a staged file or a remote URL.
type startRequest struct {
	File string `json:"file"`
	URL  string `json:"url"`
}

func (h *TransferHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch {
	case req.File != "" && req.URL != "":
		response.Error(w, http.StatusBadRequest, "file and url are mutually exclusive")
		return
	case req.File != "":
		err = h.transfers.UploadStaged(middleware.User(r), r.RemoteAddr, req.File)
	case req.URL != "":
		err = h.transfers.ImportURL(middleware.User(r), r.RemoteAddr, req.URL)
	default:
		response.Error(w, http.StatusBadRequest, "file or url is required")
		return
	}
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusAccepted, h.transfers.Status())
}

func (h *TransferHandler) Current(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.transfers.Status())
}
