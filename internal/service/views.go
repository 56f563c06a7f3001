package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/CaioWing/harbor-console/internal/domain"
)

// Views holds every resource view of a console instance.
type Views struct {
	Devices  *DeviceView
	Software *SoftwareView
	Rollouts *RolloutView
	Users    *UserView

	byName map[string]View
}

func NewViews(deps ViewDeps, links LinkBuilder) (*Views, error) {
	devices, err := NewDeviceView(deps)
	if err != nil {
		return nil, fmt.Errorf("devices view: %w", err)
	}
	software, err := NewSoftwareView(deps, links)
	if err != nil {
		return nil, fmt.Errorf("software view: %w", err)
	}
	rollouts, err := NewRolloutView(deps)
	if err != nil {
		return nil, fmt.Errorf("rollouts view: %w", err)
	}
	users, err := NewUserView(deps)
	if err != nil {
		return nil, fmt.Errorf("users view: %w", err)
	}

	v := &Views{
		Devices:  devices,
		Software: software,
		Rollouts: rollouts,
		Users:    users,
	}
	v.byName = map[string]View{
		devices.Name():  devices,
		software.Name(): software,
		rollouts.Name(): rollouts,
		users.Name():    users,
	}
	return v, nil
}

func (v *Views) Get(name string) (View, error) {
	view, ok := v.byName[name]
	if !ok {
		return nil, fmt.Errorf("view %q: %w", name, domain.ErrNotFound)
	}
	return view, nil
}

func (v *Views) Names() []string {
	names := make([]string, 0, len(v.byName))
	for name := range v.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins polling every view until ctx is cancelled.
func (v *Views) Start(ctx context.Context) {
	for _, view := range v.byName {
		view.Start(ctx)
	}
}

func (v *Views) Close() {
	for _, view := range v.byName {
		view.Close()
	}
}
