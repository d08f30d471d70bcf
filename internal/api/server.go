package api

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppilot/internal/bus"
	"github.com/matheus3301/wppilot/internal/site"
	"github.com/matheus3301/wppilot/internal/status"
	"github.com/matheus3301/wppilot/internal/store"
	syncpkg "github.com/matheus3301/wppilot/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Automator is the page surface the service drives. site.Host satisfies it.
type Automator interface {
	Name() string
	URL() string
	CollectContext(ctx context.Context, opts site.Options) site.Context
	RunAction(ctx context.Context, action string, args map[string]any) site.Result
}

// Service implements AutomationServer.
type Service struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	page        Automator
	db          *store.DB
	ledger      *syncpkg.Ledger
	bus         *bus.Bus
	logger      *zap.Logger
}

// NewService creates the gRPC service. page may be nil until the browser is
// up; page calls then fail with Unavailable.
func NewService(sessionName string, machine *status.Machine, page Automator, db *store.DB, ledger *syncpkg.Ledger, b *bus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		page:        page,
		db:          db,
		ledger:      ledger,
		bus:         b,
		logger:      logger.Named("api"),
	}
}

// GetStatus reports the daemon state and archive counters.
func (s *Service) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	info := StatusInfo{
		Session:  s.sessionName,
		Status:   string(s.machine.Current()),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if s.page != nil {
		info.Handler = s.page.Name()
		info.URL = s.page.URL()
	}
	if s.db != nil {
		if n, err := s.db.ChatCount(); err == nil {
			info.ChatCount = n
		}
		if n, err := s.db.MessageCount(); err == nil {
			info.MessageCount = n
		}
		if pending, err := s.db.PendingOutbox(); err == nil {
			info.OutboxPending = len(pending)
		}
	}
	if s.ledger != nil {
		info.KnownChats = len(s.ledger.Entries())
	}
	if s.bus != nil {
		info.EventsDropped = s.bus.Stats().Dropped
	}
	return encode(info)
}

// CollectContext runs one collection pass on the active handler.
func (s *Service) CollectContext(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.page == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "browser not ready")
	}
	req, err := decode[CollectRequest](in)
	if err != nil {
		return nil, err
	}
	pc := s.page.CollectContext(ctx, site.Options{TextLimit: req.TextLimit, MessageLimit: req.MessageLimit})
	return encode(pc)
}

// RunAction dispatches an action. Action failures travel inside the result;
// only transport problems become gRPC errors.
func (s *Service) RunAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.page == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "browser not ready")
	}
	req, err := decode[ActionRequest](in)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Action) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "action is required")
	}
	res := s.page.RunAction(ctx, req.Action, req.Args)
	s.logger.Debug("action served", zap.String("action", req.Action), zap.Bool("ok", res.OK))
	return encode(res)
}

// QueueMessage stores a message in the outbox for the sender to deliver.
func (s *Service) QueueMessage(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode[QueueRequest](in)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Chat) == "" || strings.TrimSpace(req.Text) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "chat and text are required")
	}
	if req.ClientMsgID == "" {
		req.ClientMsgID = uuid.NewString()
	}
	if err := s.db.QueueOutbox(req.ClientMsgID, req.Chat, req.ExpectedPhone, req.Text); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, grpcstatus.Errorf(codes.AlreadyExists, "client message id %q already queued", req.ClientMsgID)
		}
		return nil, grpcstatus.Errorf(codes.Internal, "queue outbox: %v", err)
	}
	s.logger.Info("message queued", zap.String("client_msg_id", req.ClientMsgID))
	return encode(QueueResponse{ClientMsgID: req.ClientMsgID, Status: store.OutboxQueued})
}

// ListOutbox returns recent outbox entries, newest first.
func (s *Service) ListOutbox(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode[struct {
		Limit int `json:"limit"`
	}](in)
	if err != nil {
		return nil, err
	}
	entries, err := s.db.ListOutbox(req.Limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list outbox: %v", err)
	}
	out := OutboxList{Entries: make([]OutboxItem, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, outboxItem(e))
	}
	return encode(out)
}

// SearchMessages runs a full-text query over archived messages.
func (s *Service) SearchMessages(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode[SearchRequest](in)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "query is required")
	}
	results, err := s.db.SearchMessages(req.Query, req.ChannelID, req.Limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search messages: %v", err)
	}
	out := SearchResponse{Results: make([]SearchHit, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, searchHit(r))
	}
	return encode(out)
}

// ListLedger returns the sync ledger, most recently updated chat first.
func (s *Service) ListLedger(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.ledger == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "ledger not loaded")
	}
	return encode(LedgerView{Chats: s.ledger.Entries()})
}

// WatchEvents streams bus events until the client goes away.
func (s *Service) WatchEvents(in *structpb.Struct, stream EventStream) error {
	req, err := decode[WatchRequest](in)
	if err != nil {
		return err
	}
	ch, unsub := s.bus.Subscribe(req.Prefix, 64)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			msg, err := envelope(evt)
			if err != nil {
				s.logger.Warn("event not encodable", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func envelope(evt bus.Event) (*structpb.Struct, error) {
	env := EventEnvelope{
		ID:         evt.ID,
		Kind:       evt.Kind,
		OccurredAt: evt.Timestamp.UnixMilli(),
		Payload:    evt.Payload,
	}
	msg, err := toStruct(env)
	if err != nil {
		env.Payload = nil
		return toStruct(env)
	}
	return msg, nil
}

func encode(v any) (*structpb.Struct, error) {
	s, err := toStruct(v)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "%v", err)
	}
	return s, nil
}

func decode[T any](in *structpb.Struct) (T, error) {
	v, err := fromStruct[T](in)
	if err != nil {
		return v, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	return v, nil
}
