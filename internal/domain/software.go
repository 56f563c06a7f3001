package domain

type Hardware struct {
	ID       int    `json:"id"`
	Model    string `json:"model"`
	Revision string `json:"revision"`
}

// Software is one row of the software catalog grid.
type Software struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Version       string     `json:"version"`
	Size          int64      `json:"size"`
	Hash          string     `json:"hash"`
	Compatibility []Hardware `json:"compatibility"`
}

type SoftwareDelete struct {
	SoftwareIDs []int `json:"software_ids"`
}
