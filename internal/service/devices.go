package service

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/grid"
)

const DevicesEndpoint = "/ui/bff/devices"

type DeviceView struct {
	*resourceView[domain.Device]
}

var deviceColumns = []grid.Column{
	{Title: "Name", Data: "name", Searchable: true, Orderable: true},
	{Title: "Online", Data: "polling", Render: grid.RenderDot("success", "danger")},
	{Title: "ID", Data: "id", Searchable: true, Orderable: true},
	{Title: "Model", Data: "hw_model", Name: "hardware__model", Searchable: true, Orderable: true},
	{Title: "Revision", Data: "hw_revision", Name: "hardware__revision", Searchable: true, Orderable: true},
	{Title: "Feed", Data: "feed", Searchable: true, Orderable: true},
	{Title: "Version", Data: "sw_version", Searchable: true, Orderable: true},
	{Title: "Target", Data: "sw_target_version"},
	{Title: "Update mode", Data: "update_mode", Orderable: true},
	{Title: "Force update", Data: "force_update", Render: grid.RenderDot("success", "danger")},
	{Title: "Progress", Data: "progress", Render: grid.RenderPercent},
	{Title: "Last IP", Data: "last_ip", Searchable: true},
	{Title: "Last seen", Data: "last_seen", Orderable: true, Render: grid.RenderRelative},
	{Title: "State", Data: "last_state", Orderable: true},
}

var deviceGates = []grid.Gate[domain.Device]{
	{Name: "select_all", Enabled: grid.NotAllSelected[domain.Device]},
	{Name: "select_none", Enabled: grid.AnySelected[domain.Device]},
	{Name: "config", Enabled: grid.AnySelected[domain.Device]},
	{Name: "force_update", Enabled: grid.AnySelected[domain.Device]},
	{Name: "delete", Enabled: grid.AnySelected[domain.Device]},
	{Name: "pin", Enabled: grid.AnySelected[domain.Device]},
	{Name: "logs", Enabled: grid.ExactlyOne[domain.Device]},
	{Name: "rename", Enabled: grid.ExactlyOne[domain.Device]},
}

// DeviceConfig is the input of the configure action. Software is a
// software id, "rollout" or "latest".
type DeviceConfig struct {
	Software string `json:"software"`
	Feed     string `json:"feed"`
}

func NewDeviceView(deps ViewDeps) (*DeviceView, error) {
	yes := true
	actions := map[string]action{
		"delete": {gate: "delete", build: func(cmd domain.SelectionCommand, _ json.RawMessage) (string, interface{}, error) {
			return http.MethodDelete, domain.DeviceDelete{Devices: cmd.IDs}, nil
		}},
		"force_update": {gate: "force_update", build: func(cmd domain.SelectionCommand, _ json.RawMessage) (string, interface{}, error) {
			return http.MethodPatch, domain.DevicePatch{Devices: cmd.IDs, ForceUpdate: &yes}, nil
		}},
		"pin": {gate: "pin", build: func(cmd domain.SelectionCommand, _ json.RawMessage) (string, interface{}, error) {
			return http.MethodPatch, domain.DevicePatch{Devices: cmd.IDs, Pinned: &yes}, nil
		}},
		"rename": {gate: "rename", build: func(cmd domain.SelectionCommand, raw json.RawMessage) (string, interface{}, error) {
			var in struct {
				Name string `json:"name"`
			}
			if err := decodeInput(raw, &in); err != nil {
				return "", nil, err
			}
			if in.Name == "" {
				return "", nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
			}
			return http.MethodPatch, domain.DevicePatch{Devices: cmd.IDs, Name: &in.Name}, nil
		}},
		"configure": {gate: "config", build: func(cmd domain.SelectionCommand, raw json.RawMessage) (string, interface{}, error) {
			var in DeviceConfig
			if err := decodeInput(raw, &in); err != nil {
				return "", nil, err
			}
			if in.Software == "" && in.Feed == "" {
				return "", nil, fmt.Errorf("%w: software or feed is required", domain.ErrInvalidInput)
			}
			patch := domain.DevicePatch{Devices: cmd.IDs}
			if in.Software != "" {
				patch.Software = &in.Software
			}
			if in.Feed != "" {
				patch.Feed = &in.Feed
			}
			return http.MethodPatch, patch, nil
		}},
	}

	v, err := newResourceView(deps, grid.Config[domain.Device]{
		View:     "devices",
		Endpoint: DevicesEndpoint,
		Columns:  deviceColumns,
		ID:       func(d domain.Device) string { return d.ID },
		Gates:    deviceGates,
	}, actions)
	if err != nil {
		return nil, err
	}
	return &DeviceView{v}, nil
}

// LogTarget is the device whose log stream may be opened, if exactly one
// is selected.
func (v *DeviceView) LogTarget() (string, bool) {
	sel := v.grid.Selection()
	if !grid.ExactlyOne(sel) {
		return "", false
	}
	return sel.IDs[0], true
}
