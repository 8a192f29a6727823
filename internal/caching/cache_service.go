package caching

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"propertyhub/internal/models"
)

const keyPrefix = "propertyhub:session:"

// UserSnapshot is the resolved user context of one session.
type UserSnapshot struct {
	UserID               uuid.UUID   `json:"user_id"`
	Email                string      `json:"email"`
	DisplayName          string      `json:"display_name"`
	ActiveOrganizationID *uuid.UUID  `json:"active_organization_id,omitempty"`
	Role                 models.Role `json:"role,omitempty"`
}

// CacheService keeps user context snapshots per logical session. Entries are
// never shared between sessions.
type CacheService interface {
	// GetUserContext returns nil on a cache miss.
	GetUserContext(ctx context.Context, sessionID string) (*UserSnapshot, error)
	SetUserContext(ctx context.Context, sessionID string, snap *UserSnapshot) error
	DeleteUserContext(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCacheService(addr, password string, db int, ttl time.Duration, log *zap.Logger) CacheService {
	// accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn("Redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(err))
	} else {
		log.Debug("Redis connection established", zap.String("addr", parsedAddr))
	}

	return &redisCacheService{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

func (r *redisCacheService) GetUserContext(ctx context.Context, sessionID string) (*UserSnapshot, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var snap UserSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *redisCacheService) SetUserContext(ctx context.Context, sessionID string, snap *UserSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(sessionID), data, r.ttl).Err()
}

func (r *redisCacheService) DeleteUserContext(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKey(sessionID)).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
