package ui

// StateChangedMsg tells the model to re-read the store and the activity counter
type StateChangedMsg struct{}
