package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a conversion item in a transport-friendly format.
type QueueItem struct {
	ID            string `json:"id"`
	AssetID       int64  `json:"assetId"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	ErrorKind     string `json:"errorKind,omitempty"`
	StatusDetail  string `json:"statusDetail,omitempty"`
	Rotation      string `json:"rotation,omitempty"`
	Attempt       int    `json:"attempt"`
	EnqueuedAt    string `json:"enqueuedAt,omitempty"`
	StartedAt     string `json:"startedAt,omitempty"`
	CompletedAt   string `json:"completedAt,omitempty"`
	LastHeartbeat string `json:"lastHeartbeat,omitempty"`
}

// QueueStats counts items by status.
type QueueStats struct {
	Waiting    int `json:"waiting"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Error      int `json:"error"`
	Total      int `json:"total"`
}

// Asset is the catalog view of a gallery asset.
type Asset struct {
	ID                  int64   `json:"id"`
	Media               string  `json:"media"`
	IsNew               bool    `json:"isNew"`
	Dir                 string  `json:"dir"`
	OriginalFileName    string  `json:"originalFileName"`
	OptimizedFileName   string  `json:"optimizedFileName"`
	RegenerateOptimized bool    `json:"regenerateOptimized"`
	RotateFlip          string  `json:"rotateFlip"`
	Width               int     `json:"width,omitempty"`
	Height              int     `json:"height,omitempty"`
	DurationSeconds     float64 `json:"durationSeconds,omitempty"`
	OriginalDiscarded   bool    `json:"originalDiscarded"`
}

// Outcome is the result of an evaluate-and-enqueue request.
type Outcome struct {
	Disposition string     `json:"disposition"`
	Reason      string     `json:"reason,omitempty"`
	Item        *QueueItem `json:"item,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Resolved    string `json:"resolved,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// EncoderStatus reports the configured engine and its binaries.
type EncoderStatus struct {
	Engine       string             `json:"engine"`
	Available    bool               `json:"available"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// WorkerStatus reports the background worker loop.
type WorkerStatus struct {
	Running         bool   `json:"running"`
	Workers         int    `json:"workers"`
	OldestWaiting   string `json:"oldestWaiting,omitempty"`
	OldestHeartbeat string `json:"oldestHeartbeat,omitempty"`
}

// CatalogHealth reports catalog database diagnostics.
type CatalogHealth struct {
	Path          string `json:"path"`
	Exists        bool   `json:"exists"`
	Readable      bool   `json:"readable"`
	SchemaVersion int    `json:"schemaVersion"`
	Assets        int    `json:"assets"`
	HistoryRows   int    `json:"historyRows"`
	Error         string `json:"error,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	LockFilePath string        `json:"lockFilePath"`
	SocketPath   string        `json:"socketPath"`
	APIAddress   string        `json:"apiAddress,omitempty"`
	Queue        QueueStats    `json:"queue"`
	Worker       WorkerStatus  `json:"worker"`
	Encoder      EncoderStatus `json:"encoder"`
	Catalog      CatalogHealth `json:"catalog"`
	Watching     []string      `json:"watching,omitempty"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// EnqueueRequest asks for a conversion of the given kind.
type EnqueueRequest struct {
	Kind string `json:"kind"`
}

// RetryRequest lists item IDs to retry; empty retries every errored item.
type RetryRequest struct {
	IDs []string `json:"ids"`
}

// ClearHistoryResponse reports how many terminal items were removed from
// memory and from the durable history.
type ClearHistoryResponse struct {
	Removed   int   `json:"removed"`
	Persisted int64 `json:"persisted"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}
