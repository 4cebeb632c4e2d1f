package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"instancesearch/internal/store"
)

// Sender is the part of *tea.Program used to deliver messages
type Sender interface {
	Send(msg tea.Msg)
}

// Connect forwards store and activity changes to the program as
// StateChangedMsg. Notifications are coalesced: listeners re-read the store,
// so one pending message covers any number of changes. Store listeners run
// inside Dispatch, which may itself run inside Update, so they must never
// block on the program. stop waits for the forwarder to exit; call it after
// the program has started.
func Connect(p Sender, st *store.Store, activity *Activity) (stop func()) {
	signal := make(chan struct{}, 1)
	done := make(chan struct{})
	exited := make(chan struct{})

	notify := func() {
		select {
		case signal <- struct{}{}:
		default:
		}
	}

	unsubscribe := st.Subscribe(notify)
	if activity != nil {
		activity.OnChange(notify)
	}

	go func() {
		defer close(exited)
		for {
			select {
			case <-signal:
				p.Send(StateChangedMsg{})
			case <-done:
				return
			}
		}
	}()

	return func() {
		unsubscribe()
		if activity != nil {
			activity.OnChange(nil)
		}
		close(done)
		<-exited
	}
}
