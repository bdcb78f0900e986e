package model

import "time"

type IntegrationType string

const (
	IntegrationSharePoint    IntegrationType = "sharepoint"
	IntegrationConfluence    IntegrationType = "confluence"
	IntegrationObjectStorage IntegrationType = "object-storage"
)

type IntegrationStatus string

const (
	IntegrationDisconnected IntegrationStatus = "disconnected"
	IntegrationConnected    IntegrationStatus = "connected"
	IntegrationSyncing      IntegrationStatus = "syncing"
	IntegrationError        IntegrationStatus = "error"
)

// IntegrationConfig is the connection configuration of a publishing target.
// Credentials are opaque to the service and only read by adapters.
type IntegrationConfig struct {
	SiteURL         string            `json:"siteUrl"`
	AutoSync        bool              `json:"autoSync"`
	FolderPath      string            `json:"folderPath,omitempty"`
	PermissionLevel string            `json:"permissionLevel,omitempty"`
	Credentials     map[string]string `json:"credentials,omitempty"`
}

type Integration struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Type            IntegrationType   `json:"type"`
	Status          IntegrationStatus `json:"status"`
	Configuration   IntegrationConfig `json:"configuration"`
	LastSyncAt      *time.Time        `json:"lastSyncAt,omitempty"`
	DocumentsSynced int64             `json:"documentsSynced"`
	StorageUsed     int64             `json:"storageUsed"`
	LastError       string            `json:"lastError,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Redacted returns a copy safe to hand to API consumers.
func (i Integration) Redacted() Integration {
	i.Configuration.Credentials = nil
	return i
}

// NewIntegration is the admin request that creates an integration.
type NewIntegration struct {
	Name          string            `json:"name"`
	Type          IntegrationType   `json:"type"`
	Configuration IntegrationConfig `json:"configuration"`
}

// SyncStats is what a sync cycle reads back from the remote target.
type SyncStats struct {
	Documents   int64
	StorageUsed int64
}
