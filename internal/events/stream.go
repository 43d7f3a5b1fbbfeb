package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/internal/chat"
)

// StreamName is the Redis stream carrying the events of one session's
// controller for one agent.
func StreamName(prefix, sessionID, agentID string) string {
	return fmt.Sprintf("%s:session-%s:agent-%s", prefix, sessionID, agentID)
}

// Publisher appends controller events to Redis streams.
type Publisher struct {
	client *redis.Client
	prefix string
	maxLen int64
	logger *slog.Logger
}

func NewPublisher(client *redis.Client, prefix string, maxLen int64, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		maxLen: maxLen,
		logger: logger,
	}
}

// Observer returns a chat.Observer publishing to the stream of sessionID.
// Publish failures are logged; the controller never waits on Redis errors.
func (p *Publisher) Observer(sessionID string) chat.Observer {
	return chat.ObserverFunc(func(ctx context.Context, evt chat.Event) {
		if err := p.Publish(ctx, sessionID, evt); err != nil {
			p.logger.WarnContext(ctx, "failed to publish session event",
				"session_id", sessionID, "event_type", evt.Type, "error", err)
		}
	})
}

func (p *Publisher) Publish(ctx context.Context, sessionID string, evt chat.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	fields := map[string]any{
		"type":       string(evt.Type),
		"session_id": sessionID,
		"agent_id":   evt.AgentID,
		"state":      string(evt.State),
		"payload":    payload,
	}
	if evt.ConversationID != "" {
		fields["conversation_id"] = evt.ConversationID
	}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}

	args := &redis.XAddArgs{
		Stream: StreamName(p.prefix, sessionID, evt.AgentID),
		Values: fields,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session event", "session_id", sessionID, "event_type", evt.Type)
	return nil
}

// Delete removes the stream of a closed session.
func (p *Publisher) Delete(ctx context.Context, sessionID, agentID string) error {
	if err := p.client.Del(ctx, StreamName(p.prefix, sessionID, agentID)).Err(); err != nil {
		return fmt.Errorf("delete event stream: %w", err)
	}
	return nil
}

// Entry is one event read back from a stream. TraceID is the trace that was
// active when the event was published, if any.
type Entry struct {
	ID      string
	TraceID string
	Event   chat.Event
}

// Reader tails session event streams.
type Reader struct {
	client *redis.Client
	prefix string
}

func NewReader(client *redis.Client, prefix string) *Reader {
	return &Reader{client: client, prefix: prefix}
}

// Read blocks up to block for entries after lastID ("$" for new entries only)
// and returns them with the id to resume from. No entries within block is not
// an error.
func (r *Reader) Read(ctx context.Context, sessionID, agentID, lastID string, block time.Duration) ([]Entry, string, error) {
	if lastID == "" {
		lastID = "$"
	}
	stream := StreamName(r.prefix, sessionID, agentID)
	res, err := r.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Block:   block,
		Count:   100,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, lastID, nil
	}
	if err != nil {
		return nil, lastID, fmt.Errorf("read event stream: %w", err)
	}

	var entries []Entry
	for _, streamRes := range res {
		for _, msg := range streamRes.Messages {
			lastID = msg.ID
			raw, ok := msg.Values["payload"].(string)
			if !ok {
				continue
			}
			var evt chat.Event
			if err := json.Unmarshal([]byte(raw), &evt); err != nil {
				continue
			}
			traceID, _ := msg.Values["trace_id"].(string)
			entries = append(entries, Entry{ID: msg.ID, TraceID: traceID, Event: evt})
		}
	}
	return entries, lastID, nil
}
