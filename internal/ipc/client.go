package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// QueueList lists queue items, optionally filtered by status.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	return call[QueueListResponse](c, "QueueList", QueueListRequest{Statuses: statuses})
}

// QueueDescribe fetches a single queue item.
func (c *Client) QueueDescribe(id string) (*QueueDescribeResponse, error) {
	return call[QueueDescribeResponse](c, "QueueDescribe", QueueDescribeRequest{ID: id})
}

// Enqueue evaluates an asset for a conversion kind.
func (c *Client) Enqueue(assetID int64, kind string) (*EnqueueResponse, error) {
	return call[EnqueueResponse](c, "Enqueue", EnqueueRequest{AssetID: assetID, Kind: kind})
}

// Process wakes the queue processor.
func (c *Client) Process() (*ProcessResponse, error) {
	return call[ProcessResponse](c, "Process", ProcessRequest{})
}

// Retry re-enqueues errored items. No ids retries every errored item.
func (c *Client) Retry(ids []string) (*RetryResponse, error) {
	return call[RetryResponse](c, "Retry", RetryRequest{IDs: ids})
}

// ClearHistory drops completed and errored items.
func (c *Client) ClearHistory() (*ClearHistoryResponse, error) {
	return call[ClearHistoryResponse](c, "ClearHistory", ClearHistoryRequest{})
}

// History lists recorded outcomes.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", req)
}

// AssetAdd registers a media file with the catalog.
func (c *Client) AssetAdd(path string) (*AssetAddResponse, error) {
	return call[AssetAddResponse](c, "AssetAdd", AssetAddRequest{Path: path})
}

// AssetList lists catalog assets, optionally filtered by media kind.
func (c *Client) AssetList(media []string) (*AssetListResponse, error) {
	return call[AssetListResponse](c, "AssetList", AssetListRequest{Media: media})
}

// AssetShow fetches one asset with its queue items.
func (c *Client) AssetShow(id int64) (*AssetShowResponse, error) {
	return call[AssetShowResponse](c, "AssetShow", AssetShowRequest{ID: id})
}

// AssetRotate records a pending rotation for an asset.
func (c *Client) AssetRotate(id int64, rotation string) (*AssetActionResponse, error) {
	return call[AssetActionResponse](c, "AssetRotate", AssetRotateRequest{ID: id, Rotation: rotation})
}

// AssetRegenerate forces the optimized derivative to be rebuilt.
func (c *Client) AssetRegenerate(id int64) (*AssetActionResponse, error) {
	return call[AssetActionResponse](c, "AssetRegenerate", AssetRegenerateRequest{ID: id})
}

// EncoderCheck re-resolves encoder binaries.
func (c *Client) EncoderCheck() (*EncoderCheckResponse, error) {
	return call[EncoderCheckResponse](c, "EncoderCheck", EncoderCheckRequest{})
}
