package grid

// Observer receives view updates. Callbacks are invoked without any
// synchronizer lock held, so they may call back into it.
type Observer[R any] interface {
	OnSelectionChanged(sel Selection[R])
	OnRefreshed(state State[R])
	OnRefreshError(err error)
}

// ObserverFuncs adapts optional callbacks to Observer.
type ObserverFuncs[R any] struct {
	SelectionChanged func(Selection[R])
	Refreshed        func(State[R])
	RefreshError     func(error)
}

func (o ObserverFuncs[R]) OnSelectionChanged(sel Selection[R]) {
	if o.SelectionChanged != nil {
		o.SelectionChanged(sel)
	}
}

func (o ObserverFuncs[R]) OnRefreshed(st State[R]) {
	if o.Refreshed != nil {
		o.Refreshed(st)
	}
}

func (o ObserverFuncs[R]) OnRefreshError(err error) {
	if o.RefreshError != nil {
		o.RefreshError(err)
	}
}

type observers[R any] []Observer[R]

func (o observers[R]) OnSelectionChanged(sel Selection[R]) {
	for _, x := range o {
		x.OnSelectionChanged(sel)
	}
}

func (o observers[R]) OnRefreshed(st State[R]) {
	for _, x := range o {
		x.OnRefreshed(st)
	}
}

func (o observers[R]) OnRefreshError(err error) {
	for _, x := range o {
		x.OnRefreshError(err)
	}
}
