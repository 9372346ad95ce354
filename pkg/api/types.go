package api

import (
	"fmt"
	"sort"
	"strings"
)

// ObservationPlan is a scheduled observation as stored by the portal.
// Filters is serialized as a comma separated list on the wire.
type ObservationPlan struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	ObjectName string  `json:"object_name,omitempty"`
	RA         float64 `json:"ra"`
	DEC        float64 `json:"dec"`
	Filters    string  `json:"filters"`
	FrameMode  string  `json:"framemode"`
	Reduction  string  `json:"reduction,omitempty"`
	ExpTime    float64 `json:"exptime"`
	StartTime  string  `json:"start_time"`
	Executed   bool    `json:"executed"`
	ExecutedAt string  `json:"executed_at,omitempty"`
	Outputs    string  `json:"outputs,omitempty"`
}

// FilterList splits the comma separated filter field.
func (p ObservationPlan) FilterList() []string {
	if p.Filters == "" {
		return nil
	}
	parts := strings.Split(p.Filters, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// OutputFiles splits the comma separated outputs field.
func (p ObservationPlan) OutputFiles() []string {
	if p.Outputs == "" {
		return nil
	}
	parts := strings.Split(p.Outputs, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// CreatePlanRequest is the body posted to /api/create_plan/.
type CreatePlanRequest struct {
	Name       string  `json:"name"`
	ObjectName string  `json:"object_name,omitempty"`
	RA         string  `json:"ra,omitempty"`
	DEC        string  `json:"dec,omitempty"`
	Filters    string  `json:"filters"`
	FrameMode  string  `json:"framemode"`
	ExpTime    float64 `json:"exptime"`
	StartTime  string  `json:"start_time"`
}

// Reservation is an observing time slot granted to a user.
type Reservation struct {
	ID        int    `json:"id"`
	User      string `json:"user"`
	Username  string `json:"username,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// TelescopeStatus mirrors the telescope register pushed by the server.
type TelescopeStatus struct {
	Name              string  `json:"name"`
	Status            string  `json:"status"`
	RA                float64 `json:"ra"`
	DEC               float64 `json:"dec"`
	Alt               float64 `json:"alt"`
	Az                float64 `json:"az"`
	ExecutingPlanID   int     `json:"executing_plan_id,omitempty"`
	ExecutingPlanName string  `json:"executing_plan_name,omitempty"`
	Operation         string  `json:"operation,omitempty"`
}

// AppInfo is the flat configuration blob served by /api/appinfo/.
type AppInfo struct {
	Latitude    string   `json:"LAT"`
	Longitude   string   `json:"LON"`
	Filters     []string `json:"FILTERS"`
	FrameTypes  []string `json:"FRAME_TYPES"`
	CurrentTime string   `json:"current_time,omitempty"`
}

// StatusResponse is the generic {status, message} envelope used by the
// portal's mutating endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// OK reports whether the server accepted the operation.
func (r StatusResponse) OK() bool {
	return r.Status == "success"
}

// PresavedObject is an entry of the observable presaved target list.
type PresavedObject struct {
	Name string  `json:"name"`
	RA   float64 `json:"ra"`
	DEC  float64 `json:"dec"`
}

// FieldErrors carries field-level validation errors returned by the auth
// endpoints, keyed by form field name.
type FieldErrors map[string][]string

// Error renders the field errors in a stable order.
func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", k, strings.Join(e[k], ", "))
	}
	return b.String()
}

// HTTPError is returned for unexpected response codes with no structured
// error payload.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
