package realtime

import "encoding/json"

// Message types sent to the portal.
const (
	TypeCheckCoord           = "checkcoord"
	TypeCheckCoordOnDate     = "checkcoordondate"
	TypeCheckTelescopeStatus = "check_telescope_status"
)

// Message types pushed by the portal.
const (
	TypeMessage            = "message"
	TypeCoordChecked       = "coordchecked"
	TypeCoordCheckedOnDate = "coordcheckedondate"
	TypeTelescopeStatus    = "telescope_status"
)

// Message is the wire envelope for the realtime channel. ID carries the
// correlation id on request/response exchanges and is empty on
// broadcasts.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CoordCheckRequest asks the server whether a coordinate is observable,
// now or at a given date.
type CoordCheckRequest struct {
	RA   string `json:"ra"`
	DEC  string `json:"dec"`
	Date string `json:"date,omitempty"`
}

// CoordCheckResponse is the server's visibility verdict.
type CoordCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}
