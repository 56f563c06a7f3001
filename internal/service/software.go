package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/grid"
)

const SoftwareEndpoint = "/ui/bff/software"

// LinkBuilder resolves backend download links.
type LinkBuilder interface {
	DownloadURL(softwareID string) string
}

type SoftwareView struct {
	*resourceView[domain.Software]
	links LinkBuilder
}

var softwareColumns = []grid.Column{
	{Title: "ID", Data: "id", Hidden: true},
	{Title: "Name", Data: "name", Searchable: true, Orderable: true},
	{Title: "Version", Data: "version", Searchable: true, Orderable: true},
	{Title: "Compatibility", Data: "compatibility", Render: grid.RenderList(", ", hardwareLabel)},
	{Title: "Size", Data: "size", Orderable: true, Render: grid.RenderMegabytes},
}

var softwareGates = []grid.Gate[domain.Software]{
	{Name: "select_all", Enabled: grid.NotAllSelected[domain.Software]},
	{Name: "select_none", Enabled: grid.AnySelected[domain.Software]},
	{Name: "delete", Enabled: grid.AnySelected[domain.Software]},
	{Name: "download", Enabled: grid.ExactlyOne[domain.Software]},
}

func hardwareLabel(v interface{}) string {
	hw, ok := v.(map[string]interface{})
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%v - %v", hw["model"], hw["revision"])
}

func NewSoftwareView(deps ViewDeps, links LinkBuilder) (*SoftwareView, error) {
	actions := map[string]action{
		"delete": {gate: "delete", build: func(cmd domain.SelectionCommand, _ json.RawMessage) (string, interface{}, error) {
			ids, err := intIDs(cmd)
			if err != nil {
				return "", nil, err
			}
			return http.MethodDelete, domain.SoftwareDelete{SoftwareIDs: ids}, nil
		}},
	}

	v, err := newResourceView(deps, grid.Config[domain.Software]{
		View:     "software",
		Endpoint: SoftwareEndpoint,
		Columns:  softwareColumns,
		ID:       func(s domain.Software) string { return strconv.Itoa(s.ID) },
		Gates:    softwareGates,
	}, actions)
	if err != nil {
		return nil, err
	}
	return &SoftwareView{resourceView: v, links: links}, nil
}

// DownloadURL links the single selected software file.
func (v *SoftwareView) DownloadURL() (string, error) {
	sel := v.grid.Selection()
	if !grid.ExactlyOne(sel) {
		return "", fmt.Errorf("%w: select exactly one software file", domain.ErrInvalidInput)
	}
	return v.links.DownloadURL(sel.IDs[0]), nil
}

func intIDs(cmd domain.SelectionCommand) ([]int, error) {
	out := make([]int, 0, len(cmd.IDs))
	for _, id := range cmd.IDs {
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q is not numeric", domain.ErrInvalidInput, id)
		}
		out = append(out, n)
	}
	return out, nil
}
