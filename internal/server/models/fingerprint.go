package models

// DeviceFingerprint is the opaque set of client attributes (screen metrics,
// user agent, timezone, ...) sent with login and refresh requests. Only its
// hash is kept.
type DeviceFingerprint map[string]any

// Empty reports whether no attributes were supplied.
func (f DeviceFingerprint) Empty() bool {
	return len(f) == 0
}
