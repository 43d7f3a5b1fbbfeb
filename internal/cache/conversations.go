package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"laivdata.app/agentdesk/internal/chat"
	"laivdata.app/agentdesk/internal/model"
)

// Platform caches conversation lists in Redis in front of another
// chat.Platform. Writes that change a list drop the cached copy and bump the
// agent's list version; a fetch that raced such a write is not stored. Redis
// failures are logged and fall through to the wrapped platform.
type Platform struct {
	chat.Platform
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var errStaleList = errors.New("conversation list changed during fetch")

func New(inner chat.Platform, rdb *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	return &Platform{
		Platform: inner,
		rdb:      rdb,
		prefix:   prefix,
		ttl:      ttl,
		logger:   logger,
	}
}

func (p *Platform) listKey(agentID string) string {
	return fmt.Sprintf("%s:agent-%s", p.prefix, agentID)
}

// versionKey counts invalidations of an agent's list. It carries no TTL so a
// version never repeats while a fetch is in flight.
func (p *Platform) versionKey(agentID string) string {
	return fmt.Sprintf("%s:version:agent-%s", p.prefix, agentID)
}

// ownerKey maps a conversation to the agent whose list contains it, so
// renames and deletes, which only know the conversation id, can invalidate.
func (p *Platform) ownerKey(conversationID string) string {
	return fmt.Sprintf("%s:owner:conversation-%s", p.prefix, conversationID)
}

func (p *Platform) ListConversations(ctx context.Context, agentID string) ([]model.ConversationSummary, error) {
	key := p.listKey(agentID)
	raw, err := p.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var summaries []model.ConversationSummary
		if uerr := json.Unmarshal(raw, &summaries); uerr == nil {
			p.logger.DebugContext(ctx, "conversation list cache hit", "agent_id", agentID, "count", len(summaries))
			return summaries, nil
		}
		p.logger.WarnContext(ctx, "dropping undecodable cached conversation list", "agent_id", agentID)
		p.invalidate(ctx, agentID)
	case !errors.Is(err, redis.Nil):
		p.logger.WarnContext(ctx, "conversation list cache read failed", "agent_id", agentID, "error", err)
	}

	version, verr := p.version(ctx, agentID)
	summaries, err := p.Platform.ListConversations(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if verr == nil {
		p.store(ctx, agentID, version, summaries)
	}
	return summaries, nil
}

func (p *Platform) SendAgentMessage(ctx context.Context, agentID string, req model.MessageRequest) (*model.MessageResponse, error) {
	resp, err := p.Platform.SendAgentMessage(ctx, agentID, req)
	if err != nil {
		return nil, err
	}
	p.invalidate(ctx, agentID)
	return resp, nil
}

func (p *Platform) CreateConversation(ctx context.Context, agentID, title string) (*model.Conversation, error) {
	conv, err := p.Platform.CreateConversation(ctx, agentID, title)
	if err != nil {
		return nil, err
	}
	p.invalidate(ctx, agentID)
	return conv, nil
}

func (p *Platform) UpdateConversationTitle(ctx context.Context, conversationID, title string) (*model.Conversation, error) {
	conv, err := p.Platform.UpdateConversationTitle(ctx, conversationID, title)
	if err != nil {
		return nil, err
	}
	p.invalidateOwner(ctx, conversationID)
	return conv, nil
}

func (p *Platform) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := p.Platform.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	p.invalidateOwner(ctx, conversationID)
	return nil
}

func (p *Platform) version(ctx context.Context, agentID string) (string, error) {
	v, err := p.rdb.Get(ctx, p.versionKey(agentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		p.logger.WarnContext(ctx, "conversation list version read failed", "agent_id", agentID, "error", err)
		return "", err
	}
	return v, nil
}

// store caches summaries unless the agent's list version moved past version
// since the fetch began.
func (p *Platform) store(ctx context.Context, agentID, version string, summaries []model.ConversationSummary) {
	raw, err := json.Marshal(summaries)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to encode conversation list", "agent_id", agentID, "error", err)
		return
	}
	versionKey := p.versionKey(agentID)
	err = p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleList
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, p.listKey(agentID), raw, p.ttl)
			for _, s := range summaries {
				pipe.Set(ctx, p.ownerKey(s.ID), agentID, p.ttl)
			}
			return nil
		})
		return err
	}, versionKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleList), errors.Is(err, redis.TxFailedErr):
		p.logger.DebugContext(ctx, "skipping cache write for a list invalidated mid-fetch", "agent_id", agentID)
	default:
		p.logger.WarnContext(ctx, "conversation list cache write failed", "agent_id", agentID, "error", err)
	}
}

func (p *Platform) invalidate(ctx context.Context, agentID string) {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, p.versionKey(agentID))
		pipe.Del(ctx, p.listKey(agentID))
		return nil
	})
	if err != nil {
		p.logger.WarnContext(ctx, "conversation list cache invalidation failed", "agent_id", agentID, "error", err)
	}
}

func (p *Platform) invalidateOwner(ctx context.Context, conversationID string) {
	agentID, err := p.rdb.GetDel(ctx, p.ownerKey(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return
	}
	if err != nil {
		p.logger.WarnContext(ctx, "conversation owner lookup failed", "conversation_id", conversationID, "error", err)
		return
	}
	p.invalidate(ctx, agentID)
}
