package netmon

type EventType string

const (
	LinkUp   EventType = "LINK_UP"
	LinkDown EventType = "LINK_DOWN"
)

// LinkEvent reports a candidate interface going operationally up or
// down.
type LinkEvent struct {
	Type      EventType
	Interface string
}
