package domain

// Rollout is one row of the rollout grid. CreatedAt is epoch milliseconds.
type Rollout struct {
	ID           int     `json:"id"`
	CreatedAt    int64   `json:"created_at"`
	Name         *string `json:"name"`
	Feed         string  `json:"feed"`
	Paused       bool    `json:"paused"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`
	SWVersion    string  `json:"sw_version"`
	SWFile       string  `json:"sw_file"`
}

type RolloutCreate struct {
	Name       string `json:"name"`
	Feed       string `json:"feed"`
	SoftwareID int    `json:"software_id"`
}

type RolloutPatch struct {
	IDs    []int `json:"ids"`
	Paused bool  `json:"paused"`
}

type RolloutDelete struct {
	IDs []int `json:"ids"`
}
