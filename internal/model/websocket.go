package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage carries one snapshot of a running upload
type WSProgressMessage struct {
	Type     string         `json:"type"`
	JobID    string         `json:"jobId"`
	Status   JobStatus      `json:"status"`
	Percent  int            `json:"percent"`
	Text     string         `json:"text"`
	Progress UploadProgress `json:"progress"`
}

// WSCompleteMessage represents upload completion
type WSCompleteMessage struct {
	Type     string         `json:"type"`
	JobID    string         `json:"jobId"`
	Progress UploadProgress `json:"progress"`
}

// WSErrorMessage represents a failed or superseded upload
type WSErrorMessage struct {
	Type     string          `json:"type"`
	JobID    string          `json:"jobId"`
	Error    WSError         `json:"error"`
	Progress *UploadProgress `json:"progress,omitempty"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}
