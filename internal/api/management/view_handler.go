package management

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CaioWing/harbor-console/internal/api/middleware"
	"github.com/CaioWing/harbor-console/internal/api/response"
	"github.com/CaioWing/harbor-console/internal/service"
)

type ViewHandler struct {
	views *service.Views
}

func NewViewHandler(views *service.Views) *ViewHandler {
	return &ViewHandler{views: views}
}

func (h *ViewHandler) view(w http.ResponseWriter, r *http.Request) (service.View, bool) {
	v, err := h.views.Get(chi.URLParam(r, "view"))
	if err != nil {
		response.FromError(w, err)
		return nil, false
	}
	return v, true
}

func (h *ViewHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string][]string{"views": h.views.Names()})
}

func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, v.Snapshot())
}

type selectionRequest struct {
	Select   []string `json:"select"`
	Deselect []string `json:"deselect"`
	All      bool     `json:"all"`
	None     bool     `json:"none"`
}

// Select applies none, then all, then explicit deselections and selections.
func (h *ViewHandler) Select(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.None {
		v.SelectNone()
	}
	if req.All {
		v.SelectAll()
	}
	if len(req.Deselect) > 0 {
		v.Deselect(req.Deselect...)
	}
	if len(req.Select) > 0 {
		v.Select(req.Select...)
	}
	response.JSON(w, http.StatusOK, v.Snapshot())
}

func (h *ViewHandler) Scroll(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}

	var req struct {
		Offset int `json:"offset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v.SetScrollOffset(req.Offset)
	response.JSON(w, http.StatusOK, map[string]int{"offset": v.Snapshot().ScrollOffset})
}

func (h *ViewHandler) SetParams(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}

	params := v.Snapshot().Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := v.SetParams(r.Context(), params); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, params)
}

func (h *ViewHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	if err := v.Refresh(r.Context()); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, v.Snapshot())
}

func (h *ViewHandler) Action(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}

	input, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = v.Do(r.Context(), service.ActionRequest{
		Name:      chi.URLParam(r, "action"),
		Actor:     middleware.User(r),
		IPAddress: r.RemoteAddr,
		Input:     input,
	})
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Download redirects to the backend link of the selected software file.
func (h *ViewHandler) Download(w http.ResponseWriter, r *http.Request) {
	link, err := h.views.Software.DownloadURL()
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"url": link})
}
