package models

import (
	"encoding/json"
	"time"
)

// ServerLog represents a snapshot row from the server_logs table
type ServerLog struct {
	UUID             string          `json:"uuid" db:"uuid"`
	Requester        string          `json:"requester" db:"requester"`
	PluginName       string          `json:"pluginName" db:"plugin_name"`
	PluginVersion    string          `json:"pluginVersion" db:"plugin_version"`
	ServerPort       int             `json:"serverPort" db:"server_port"`
	ServerVersion    string          `json:"serverVersion" db:"server_version"`
	ServerSoftware   string          `json:"serverSoftware" db:"server_software"`
	ServerOnlineMode bool            `json:"serverOnlineMode" db:"server_online_mode"`
	Extra            json.RawMessage `json:"extra,omitempty" db:"extra"`
	Timestamp        time.Time       `json:"timestamp" db:"ts"`
}

// UploadRequest is the payload schema for snapshot uploads
type UploadRequest struct {
	Requester        string          `json:"requester" binding:"required"`
	PluginName       string          `json:"pluginName" binding:"required"`
	PluginVersion    string          `json:"pluginVersion" binding:"required"`
	ServerPort       int             `json:"serverPort" binding:"required,gt=0"`
	ServerVersion    string          `json:"serverVersion" binding:"required"`
	ServerSoftware   string          `json:"serverSoftware" binding:"required"`
	ServerOnlineMode *bool           `json:"serverOnlineMode" binding:"required"`
	Extra            json.RawMessage `json:"extra,omitempty"`
}

// UploadResponse is returned after a successful upload
type UploadResponse struct {
	Status string `json:"status"`
	LogID  string `json:"logId"`
}

// UploadedEvent is the summary published to RabbitMQ after a snapshot
// is stored. It deliberately excludes the extra payload.
type UploadedEvent struct {
	UUID           string    `json:"uuid"`
	Code           string    `json:"code"`
	Requester      string    `json:"requester"`
	PluginName     string    `json:"plugin_name"`
	PluginVersion  string    `json:"plugin_version"`
	ServerVersion  string    `json:"server_version"`
	ServerSoftware string    `json:"server_software"`
	Timestamp      time.Time `json:"timestamp"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}
