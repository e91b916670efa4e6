package model

// Profile identifies this installation towards the relay.
type Profile struct {
	InstallID string `json:"installId"`
	Name      string `json:"name"`
}
