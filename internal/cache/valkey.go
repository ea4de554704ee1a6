package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"futsal/internal/models"
)

type Config struct {
	Host            string
	Port            string
	Password        string
	DB              int
	AuthTTL         time.Duration
	AvailabilityTTL time.Duration
}

type ValkeyClient struct {
	client          *redis.Client
	authTTL         time.Duration
	availabilityTTL time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Host + ":" + cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return NewValkeyClientFromRedis(rdb, cfg), nil
}

// NewValkeyClientFromRedis wraps an existing connection
func NewValkeyClientFromRedis(rdb *redis.Client, cfg Config) *ValkeyClient {
	return &ValkeyClient{
		client:          rdb,
		authTTL:         cfg.AuthTTL,
		availabilityTTL: cfg.AvailabilityTTL,
	}
}

func authKey(email, passwordHash string) string {
	return "auth:" + base64.StdEncoding.EncodeToString([]byte(email+":"+passwordHash))
}

func availabilityKey(groundID int64, date time.Time) string {
	return fmt.Sprintf("slots:available:%d:%s", groundID, date.Format(models.DateLayout))
}

// GetUserIDByAuth returns 0 without error on a cache miss
func (v *ValkeyClient) GetUserIDByAuth(ctx context.Context, email, passwordHash string) (int64, error) {
	userIDStr, err := v.client.Get(ctx, authKey(email, passwordHash)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache lookup error: %w", err)
	}

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID in cache: %w", err)
	}

	return userID, nil
}

func (v *ValkeyClient) SetUserAuth(ctx context.Context, email, passwordHash string, userID int64) error {
	return v.client.Set(ctx, authKey(email, passwordHash), userID, v.authTTL).Err()
}

// GetAvailableSlots reports a hit with the second return value
func (v *ValkeyClient) GetAvailableSlots(ctx context.Context, groundID int64, date time.Time) ([]models.Slot, bool, error) {
	payload, err := v.client.Get(ctx, availabilityKey(groundID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup error: %w", err)
	}

	var slots []models.Slot
	if err := json.Unmarshal(payload, &slots); err != nil {
		return nil, false, fmt.Errorf("invalid cached slots: %w", err)
	}
	return slots, true, nil
}

func (v *ValkeyClient) SetAvailableSlots(ctx context.Context, groundID int64, date time.Time, slots []models.Slot) error {
	payload, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to marshal slots: %w", err)
	}
	return v.client.Set(ctx, availabilityKey(groundID, date), payload, v.availabilityTTL).Err()
}

func (v *ValkeyClient) InvalidateAvailability(ctx context.Context, groundID int64, date time.Time) error {
	return v.client.Del(ctx, availabilityKey(groundID, date)).Err()
}

func (v *ValkeyClient) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
