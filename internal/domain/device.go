package domain

type UpdateMode string

const (
	UpdateModeRollout  UpdateMode = "rollout"
	UpdateModeLatest   UpdateMode = "latest"
	UpdateModeAssigned UpdateMode = "assigned"
	UpdateModePinned   UpdateMode = "pinned"
)

// Device is one row of the device grid as served by the backend.
type Device struct {
	ID              string  `json:"id"`
	Name            *string `json:"name"`
	SWVersion       *string `json:"sw_version"`
	Feed            *string `json:"feed"`
	Progress        *int    `json:"progress"`
	LastState       string  `json:"last_state"`
	UpdateMode      string  `json:"update_mode"`
	ForceUpdate     bool    `json:"force_update"`
	LastIP          *string `json:"last_ip"`
	LastSeen        *int64  `json:"last_seen"`
	Polling         *bool   `json:"polling"`
	SWTargetVersion *string `json:"sw_target_version"`
	SWAssigned      *int    `json:"sw_assigned"`
	HWModel         *string `json:"hw_model"`
	HWRevision      *string `json:"hw_revision"`
}

// DevicePatch is the bulk device mutation body. Nil fields are left untouched.
type DevicePatch struct {
	Devices     []string `json:"devices"`
	Software    *string  `json:"software,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Pinned      *bool    `json:"pinned,omitempty"`
	Feed        *string  `json:"feed,omitempty"`
	ForceUpdate *bool    `json:"force_update,omitempty"`
}

type DeviceDelete struct {
	Devices []string `json:"devices"`
}
