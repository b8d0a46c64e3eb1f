package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type sentValue struct {
	RemoteMsgID string    `json:"remoteMsgId"`
	SentAt      time.Time `json:"sentAt"`
}

func (c *RedisCache) StoreSent(ctx context.Context, messageID, remoteMsgID string, sentAt time.Time) error {
	key := fmt.Sprintf("msg:%s", messageID)
	val := sentValue{
		RemoteMsgID: remoteMsgID,
		SentAt:      sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

type sessionValue struct {
	State       string `json:"state"`
	QRCode      string `json:"qrCode,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
}

func (c *RedisCache) StoreSession(ctx context.Context, info model.SessionInfo) error {
	key := fmt.Sprintf("session:%s", info.InstanceID)
	val := sessionValue{
		State:       string(info.State),
		PairingCode: info.PairingCode,
	}
	// The QR code is only useful while pairing; drop it once connected.
	if !info.Connected() {
		val.QRCode = info.QRCode
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

func (c *RedisCache) LoadSession(ctx context.Context, instanceID string) (*model.SessionInfo, error) {
	key := fmt.Sprintf("session:%s", instanceID)

	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var val sessionValue
	if err := json.Unmarshal(b, &val); err != nil {
		return nil, err
	}

	return &model.SessionInfo{
		InstanceID:  instanceID,
		State:       model.ConnectionState(val.State),
		QRCode:      val.QRCode,
		PairingCode: val.PairingCode,
	}, nil
}

func (c *RedisCache) AcquireRun(ctx context.Context, accountID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("runlease:%s", accountID)
	return c.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (c *RedisCache) ReleaseRun(ctx context.Context, accountID string) error {
	key := fmt.Sprintf("runlease:%s", accountID)
	return c.rdb.Del(ctx, key).Err()
}
