package response

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/CaioWing/harbor-console/internal/client"
	"github.com/CaioWing/harbor-console/internal/domain"
)

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error writes {"detail": msg}, the same shape the backend uses.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"detail": msg})
}

// FromError maps a service error to a status code. Backend details are
// passed through so they can be shown to the operator verbatim.
func FromError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrTransferBusy):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrRejected):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrClosed):
		status = http.StatusServiceUnavailable
	}

	msg := err.Error()
	if detail, ok := client.DetailOf(err); ok {
		msg = detail
	} else if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	Error(w, status, msg)
}

func Paginated(w http.ResponseWriter, status int, data interface{}, page, perPage, total int) {
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	JSON(w, status, PaginatedResponse{
		Data: data,
		Pagination: Pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

func ParsePagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return
}
