package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/grid"
)

const RolloutsEndpoint = "/ui/bff/rollouts"

type RolloutView struct {
	*resourceView[domain.Rollout]
}

var rolloutColumns = []grid.Column{
	{Title: "ID", Data: "id", Orderable: true},
	{Title: "Created", Data: "created_at", Orderable: true, Render: grid.RenderTimestamp(time.DateTime, time.Local)},
	{Title: "Name", Data: "name", Searchable: true, Orderable: true},
	{Title: "Feed", Data: "feed", Searchable: true, Orderable: true},
	{Title: "Software", Data: "sw_file", Searchable: true},
	{Title: "Version", Data: "sw_version", Searchable: true, Orderable: true},
	{Title: "Paused", Data: "paused", Render: grid.RenderDot("success", "light")},
	{Title: "Succeeded", Data: "success_count", Orderable: true},
	{Title: "Failed", Data: "failure_count", Orderable: true},
}

func rolloutPaused(r domain.Rollout) bool  { return r.Paused }
func rolloutRunning(r domain.Rollout) bool { return !r.Paused }

var rolloutGates = []grid.Gate[domain.Rollout]{
	{Name: "select_all", Enabled: grid.NotAllSelected[domain.Rollout]},
	{Name: "select_none", Enabled: grid.AnySelected[domain.Rollout]},
	{Name: "delete", Enabled: grid.AnySelected[domain.Rollout]},
	{Name: "pause", Enabled: grid.AnyRow(rolloutRunning)},
	{Name: "resume", Enabled: grid.AnyRow(rolloutPaused)},
}

func NewRolloutView(deps ViewDeps) (*RolloutView, error) {
	setPaused := func(paused bool) func(domain.SelectionCommand, json.RawMessage) (string, interface{}, error) {
		return func(cmd domain.SelectionCommand, _ json.RawMessage) (string, interface{}, error) {
			ids, err := intIDs(cmd)
			if err != nil {
				return "", nil, err
			}
			return http.MethodPatch, domain.RolloutPatch{IDs: ids, Paused: paused}, nil
		}
	}

	actions := map[string]action{
		"create": {build: func(_ domain.SelectionCommand, raw json.RawMessage) (string, interface{}, error) {
			var in domain.RolloutCreate
			if err := decodeInput(raw, &in); err != nil {
				return "", nil, err
			}
			if in.Feed == "" || in.SoftwareID <= 0 {
				return "", nil, fmt.Errorf("%w: feed and software_id are required", domain.ErrInvalidInput)
			}
			return http.MethodPost, in, nil
		}},
		"pause":  {gate: "pause", build: setPaused(true)},
		"resume": {gate: "resume", build: setPaused(false)},
		"delete": {gate: "delete", build: func(cmd domain.SelectionCommand, _ json.RawMessage) (string, interface{}, error) {
			ids, err := intIDs(cmd)
			if err != nil {
				return "", nil, err
			}
			return http.MethodDelete, domain.RolloutDelete{IDs: ids}, nil
		}},
	}

	v, err := newResourceView(deps, grid.Config[domain.Rollout]{
		View:     "rollouts",
		Endpoint: RolloutsEndpoint,
		Columns:  rolloutColumns,
		ID:       func(r domain.Rollout) string { return strconv.Itoa(r.ID) },
		Gates:    rolloutGates,
		InitialParams: domain.PageParams{
			Order: []domain.OrderSpec{{Column: 1, Dir: domain.SortDesc}},
		},
	}, actions)
	if err != nil {
		return nil, err
	}
	return &RolloutView{v}, nil
}
