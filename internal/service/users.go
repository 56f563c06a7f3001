package service

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/grid"
)

const UsersEndpoint = "/ui/bff/settings/users"

type UserView struct {
	*resourceView[domain.User]
}

var userColumns = []grid.Column{
	{Title: "Username", Data: "username", Searchable: true, Orderable: true},
	{Title: "Enabled", Data: "enabled", Render: grid.RenderDot("success", "danger")},
	{Title: "Permissions", Data: "permissions", Render: grid.RenderList(", ", func(v interface{}) string { return fmt.Sprint(v) })},
}

func userEnabled(u domain.User) bool  { return u.Enabled }
func userDisabled(u domain.User) bool { return !u.Enabled }

var userGates = []grid.Gate[domain.User]{
	{Name: "select_all", Enabled: grid.NotAllSelected[domain.User]},
	{Name: "select_none", Enabled: grid.AnySelected[domain.User]},
	{Name: "delete", Enabled: grid.AnySelected[domain.User]},
	{Name: "enable", Enabled: grid.AnyRow(userDisabled)},
	{Name: "disable", Enabled: grid.AnyRow(userEnabled)},
}

func NewUserView(deps ViewDeps) (*UserView, error) {
	setEnabled := func(enabled bool) func(domain.SelectionCommand, json.RawMessage) (string, interface{}, error) {
		return func(cmd domain.SelectionCommand, _ json.RawMessage) (string, interface{}, error) {
			return http.MethodPatch, domain.UserPatch{Usernames: cmd.IDs, Enabled: enabled}, nil
		}
	}

	actions := map[string]action{
		"create": {build: func(_ domain.SelectionCommand, raw json.RawMessage) (string, interface{}, error) {
			var in domain.UserCreate
			if err := decodeInput(raw, &in); err != nil {
				return "", nil, err
			}
			if in.Username == "" || in.Password == "" {
				return "", nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
			}
			if in.Permissions == nil {
				in.Permissions = []string{}
			}
			return http.MethodPost, in, nil
		}},
		"enable":  {gate: "enable", build: setEnabled(true)},
		"disable": {gate: "disable", build: setEnabled(false)},
		"delete": {gate: "delete", build: func(cmd domain.SelectionCommand, _ json.RawMessage) (string, interface{}, error) {
			return http.MethodDelete, domain.UserDelete{Usernames: cmd.IDs}, nil
		}},
	}

	v, err := newResourceView(deps, grid.Config[domain.User]{
		View:     "users",
		Endpoint: UsersEndpoint,
		Columns:  userColumns,
		ID:       func(u domain.User) string { return u.Username },
		Gates:    userGates,
	}, actions)
	if err != nil {
		return nil, err
	}
	return &UserView{v}, nil
}
