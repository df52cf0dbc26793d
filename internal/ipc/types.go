package ipc

import "mediaconv/internal/api"

// StartRequest starts the conversion worker.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the conversion worker.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueItem mirrors the HTTP API queue DTO for internal IPC callers.
type QueueItem = api.QueueItem

// Asset mirrors the HTTP API asset DTO.
type Asset = api.Asset

// Outcome mirrors the HTTP API evaluate-and-enqueue result.
type Outcome = api.Outcome

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// StatusResponse is the daemon status shared with the HTTP API.
type StatusResponse = api.DaemonStatus

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// EnqueueRequest evaluates an asset for a conversion kind.
type EnqueueRequest struct {
	AssetID int64  `json:"asset_id"`
	Kind    string `json:"kind"`
}

// EnqueueResponse reports what the evaluation did.
type EnqueueResponse struct {
	Outcome Outcome `json:"outcome"`
}

// ProcessRequest wakes the processor.
type ProcessRequest struct{}

// ProcessResponse reports how many items were waiting when the processor
// was woken.
type ProcessResponse struct {
	Waiting int `json:"waiting"`
}

// RetryRequest retries errored items. Empty list means all errored items.
type RetryRequest struct {
	IDs []string `json:"ids"`
}

// RetryResponse reports per-item retry outcomes.
type RetryResponse = api.RetryItemsResult

// ClearHistoryRequest drops terminal items.
type ClearHistoryRequest struct{}

// ClearHistoryResponse reports removed history.
type ClearHistoryResponse = api.ClearHistoryResponse

// HistoryRequest filters durable history.
type HistoryRequest struct {
	AssetID int64  `json:"asset_id"`
	Status  string `json:"status"`
	Limit   int    `json:"limit"`
}

// HistoryResponse lists recorded outcomes.
type HistoryResponse struct {
	Items []QueueItem `json:"items"`
}

// AssetAddRequest registers a media file.
type AssetAddRequest struct {
	Path string `json:"path"`
}

// AssetAddResponse reports the registered asset and its evaluation.
type AssetAddResponse struct {
	Asset   Asset   `json:"asset"`
	Created bool    `json:"created"`
	Outcome Outcome `json:"outcome"`
}

// AssetListRequest filters assets by media kind.
type AssetListRequest struct {
	Media []string `json:"media"`
}

// AssetListResponse lists catalog assets.
type AssetListResponse struct {
	Assets []Asset `json:"assets"`
}

// AssetShowRequest fetches one asset.
type AssetShowRequest struct {
	ID int64 `json:"id"`
}

// AssetShowResponse returns an asset with its latest queue items.
type AssetShowResponse struct {
	Asset Asset       `json:"asset"`
	Items []QueueItem `json:"items"`
}

// AssetRotateRequest records a pending rotation.
type AssetRotateRequest struct {
	ID       int64  `json:"id"`
	Rotation string `json:"rotation"`
}

// AssetRegenerateRequest forces an optimized derivative rebuild.
type AssetRegenerateRequest struct {
	ID int64 `json:"id"`
}

// AssetActionResponse reports an asset mutation and its evaluation.
type AssetActionResponse struct {
	Asset   Asset   `json:"asset"`
	Outcome Outcome `json:"outcome"`
}

// EncoderCheckRequest re-probes encoder binaries.
type EncoderCheckRequest struct{}

// EncoderCheckResponse reports encoder availability.
type EncoderCheckResponse = api.EncoderStatus
