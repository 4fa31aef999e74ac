package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/booking"
	"github.com/chachabrian/wheelster-backend/internal/models"
)

const (
	vehicleCacheTTL      = 5 * time.Minute
	bookingUpdateChannel = "booking:updates"
)

// releaseScript deletes a lock only while it still carries the caller's
// token, so an expired owner cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis bundles the shared locks, the vehicle cache and the booking
// update channel.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

// InitRedis connects to url and pings the server.
func InitRedis(ctx context.Context, url string, log *zap.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, log: log.Named("redis")}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Acquire implements booking.Locker with SET NX PX and a random token.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, booking.ErrLocked
	}

	return func() {
		// the caller's ctx may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, r.client, []string{lockKey(key)}, token).Err(); err != nil {
			r.log.Warn("release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (r *Redis) GetVehicle(ctx context.Context, id uint) (*models.Vehicle, bool) {
	data, err := r.client.Get(ctx, vehicleKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("read vehicle cache", zap.Uint("vehicle_id", id), zap.Error(err))
		}
		return nil, false
	}

	var v models.Vehicle
	if err := json.Unmarshal(data, &v); err != nil {
		r.log.Warn("decode cached vehicle", zap.Uint("vehicle_id", id), zap.Error(err))
		return nil, false
	}
	return &v, true
}

func (r *Redis) PutVehicle(ctx context.Context, v *models.Vehicle) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, vehicleKey(v.ID), data, vehicleCacheTTL).Err(); err != nil {
		r.log.Warn("write vehicle cache", zap.Uint("vehicle_id", v.ID), zap.Error(err))
	}
}

func (r *Redis) InvalidateVehicle(ctx context.Context, id uint) {
	if err := r.client.Del(ctx, vehicleKey(id)).Err(); err != nil {
		r.log.Warn("invalidate vehicle cache", zap.Uint("vehicle_id", id), zap.Error(err))
	}
}

// Publish implements booking.EventPublisher over Redis pub/sub so every API
// instance can push the change to its own websocket clients.
func (r *Redis) Publish(ctx context.Context, e booking.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, bookingUpdateChannel, data).Err()
}

// SubscribeBookingUpdates forwards every event published on the update
// channel to fn until ctx ends.
func (r *Redis) SubscribeBookingUpdates(ctx context.Context, fn func(booking.Event)) {
	sub := r.client.Subscribe(ctx, bookingUpdateChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var e booking.Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				r.log.Warn("decode booking update", zap.Error(err))
				continue
			}
			fn(e)
		}
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

func vehicleKey(id uint) string {
	return fmt.Sprintf("vehicle:%d", id)
}
