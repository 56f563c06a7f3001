package transfer

import "github.com/CaioWing/harbor-console/internal/domain"

// Observer is the progress sink of a Controller. Callbacks run on the
// goroutine driving the transfer and must not block for long.
type Observer interface {
	OnProgress(percent int)
	OnStatus(session domain.TransferSession)
	// OnWarning carries the backend's detail message verbatim.
	OnWarning(detail string)
	OnNotice(msg string)
	// OnSettled fires once the session is back to idle after the settle delay.
	OnSettled()
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) OnProgress(int)                  {}
func (NopObserver) OnStatus(domain.TransferSession) {}
func (NopObserver) OnWarning(string)                {}
func (NopObserver) OnNotice(string)                 {}
func (NopObserver) OnSettled()                      {}

// Observers fans every callback out in order.
type Observers []Observer

func (o Observers) OnProgress(p int) {
	for _, x := range o {
		x.OnProgress(p)
	}
}

func (o Observers) OnStatus(s domain.TransferSession) {
	for _, x := range o {
		x.OnStatus(s)
	}
}

func (o Observers) OnWarning(d string) {
	for _, x := range o {
		x.OnWarning(d)
	}
}

func (o Observers) OnNotice(m string) {
	for _, x := range o {
		x.OnNotice(m)
	}
}

func (o Observers) OnSettled() {
	for _, x := range o {
		x.OnSettled()
	}
}

// SettledFunc adapts a plain refresh callback.
type SettledFunc func()

func (SettledFunc) OnProgress(int)                  {}
func (SettledFunc) OnStatus(domain.TransferSession) {}
func (SettledFunc) OnWarning(string)                {}
func (SettledFunc) OnNotice(string)                 {}
func (f SettledFunc) OnSettled()                    { f() }
