package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"log/slog"

	"mediaconv/internal/api"
	"mediaconv/internal/catalog"
	"mediaconv/internal/daemon"
	"mediaconv/internal/gallery"
	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
)

// ServiceName is the RPC receiver name clients call into.
const ServiceName = "MediaConv"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Go(func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Go(func() {
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
			})
		}
	})
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun mediaconv stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).API()
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses, err := parseStatuses(req.Statuses)
	if err != nil {
		return err
	}
	resp.Items = api.FromQueueItems(s.daemon.ListQueue(statuses...))
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("queue item id is required")
	}
	item, ok := s.daemon.QueueItem(id)
	if !ok {
		return fmt.Errorf("queue item %s not found", id)
	}
	resp.Item = api.FromQueueItem(item)
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	kind, ok := queue.ParseKind(req.Kind)
	if !ok {
		return fmt.Errorf("unknown conversion kind %q", req.Kind)
	}
	outcome, err := s.daemon.Enqueue(s.ctx, req.AssetID, kind)
	if err != nil {
		return err
	}
	resp.Outcome = api.FromOutcome(outcome)
	s.log().Info("enqueue evaluated via IPC",
		logging.String(logging.FieldEventType, "enqueue_requested"),
		logging.Int64(logging.FieldAssetID, req.AssetID),
		logging.String(logging.FieldKind, string(kind)),
		logging.String("disposition", string(outcome.Disposition)))
	return nil
}

func (s *service) Process(_ ProcessRequest, resp *ProcessResponse) error {
	resp.Waiting = len(s.daemon.ListQueue(queue.StatusWaiting))
	s.daemon.Process()
	s.log().Debug("processor woken", logging.Int("waiting", resp.Waiting))
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	s.log().Debug("queue retry requested", logging.Int("item_count", len(req.IDs)))
	result, err := api.RetryFailedItemsByID(s.daemon.Service(), req.IDs)
	if err != nil {
		return err
	}
	*resp = result
	s.log().Info("queue items retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int("retried_count", result.RetriedCount))
	return nil
}

func (s *service) ClearHistory(_ ClearHistoryRequest, resp *ClearHistoryResponse) error {
	removed, persisted, err := s.daemon.ClearHistory(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	resp.Persisted = persisted
	s.log().Info("queue history cleared",
		logging.String(logging.FieldEventType, "queue_clear_history"),
		logging.Int("removed_count", removed),
		logging.Int64("persisted_count", persisted))
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	filter := catalog.HistoryFilter{AssetID: req.AssetID, Limit: req.Limit}
	if strings.TrimSpace(req.Status) != "" {
		status, ok := queue.ParseStatus(req.Status)
		if !ok {
			return fmt.Errorf("unknown status %q", req.Status)
		}
		filter.Status = status
	}
	items, err := s.daemon.History(s.ctx, filter)
	if err != nil {
		return err
	}
	resp.Items = api.FromQueueItems(items)
	return nil
}

func (s *service) AssetAdd(req AssetAddRequest, resp *AssetAddResponse) error {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return errors.New("asset path is required")
	}
	asset, created, outcome, err := s.daemon.AddAsset(s.ctx, path)
	if err != nil {
		return err
	}
	resp.Asset = api.FromAsset(asset)
	resp.Created = created
	resp.Outcome = api.FromOutcome(outcome)
	s.log().Info("asset registered via IPC",
		logging.String(logging.FieldEventType, "asset_add"),
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.Bool("created", created),
		logging.String("disposition", string(outcome.Disposition)))
	return nil
}

func (s *service) AssetList(req AssetListRequest, resp *AssetListResponse) error {
	media := make([]gallery.Media, 0, len(req.Media))
	for _, value := range req.Media {
		parsed, ok := gallery.ParseMedia(value)
		if !ok {
			return fmt.Errorf("unknown media kind %q", value)
		}
		media = append(media, parsed)
	}
	assets, err := s.daemon.ListAssets(s.ctx, media...)
	if err != nil {
		return err
	}
	resp.Assets = api.FromAssets(assets)
	return nil
}

func (s *service) AssetShow(req AssetShowRequest, resp *AssetShowResponse) error {
	asset, err := s.daemon.Asset(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Asset = api.FromAsset(asset)
	resp.Items = []QueueItem{}
	for _, item := range s.daemon.ListQueue() {
		if item.AssetID == asset.ID {
			resp.Items = append(resp.Items, api.FromQueueItem(item))
		}
	}
	return nil
}

func (s *service) AssetRotate(req AssetRotateRequest, resp *AssetActionResponse) error {
	rotation, err := gallery.ParseRotateFlip(req.Rotation)
	if err != nil {
		return err
	}
	asset, outcome, err := s.daemon.RotateAsset(s.ctx, req.ID, rotation)
	if err != nil {
		return err
	}
	resp.Asset = api.FromAsset(asset)
	resp.Outcome = api.FromOutcome(outcome)
	s.log().Info("rotation requested via IPC",
		logging.String(logging.FieldEventType, "asset_rotate"),
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("rotation", string(rotation)),
		logging.String("disposition", string(outcome.Disposition)))
	return nil
}

func (s *service) AssetRegenerate(req AssetRegenerateRequest, resp *AssetActionResponse) error {
	asset, outcome, err := s.daemon.RegenerateAsset(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Asset = api.FromAsset(asset)
	resp.Outcome = api.FromOutcome(outcome)
	s.log().Info("regeneration requested via IPC",
		logging.String(logging.FieldEventType, "asset_regenerate"),
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("disposition", string(outcome.Disposition)))
	return nil
}

func (s *service) EncoderCheck(_ EncoderCheckRequest, resp *EncoderCheckResponse) error {
	engine, available, statuses := s.daemon.EncoderCheck()
	resp.Engine = engine
	resp.Available = available
	resp.Dependencies = api.FromDependencies(statuses)
	return nil
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, parsed)
	}
	return statuses, nil
}
