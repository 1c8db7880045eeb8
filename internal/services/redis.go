package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// SetDriverPosition caches a driver's last-known position. Writes are
// last-write-wins; the append-only log in Postgres keeps full history.
func SetDriverPosition(ctx context.Context, driverID uint, lat, lng float64, recordedAt time.Time) error {
	positionData := map[string]interface{}{
		"lat":        lat,
		"lng":        lng,
		"recordedAt": recordedAt.Unix(),
	}

	data, err := json.Marshal(positionData)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("driver:position:%d", driverID)
	return RedisClient.Set(ctx, key, data, time.Hour).Err()
}

// GetDriverPosition retrieves a driver's cached last-known position.
func GetDriverPosition(ctx context.Context, driverID uint) (lat, lng float64, recordedAt time.Time, err error) {
	key := fmt.Sprintf("driver:position:%d", driverID)
	data, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return 0, 0, time.Time{}, err
	}

	var positionData map[string]interface{}
	if err := json.Unmarshal([]byte(data), &positionData); err != nil {
		return 0, 0, time.Time{}, err
	}

	lat, _ = positionData["lat"].(float64)
	lng, _ = positionData["lng"].(float64)
	if ts, ok := positionData["recordedAt"].(float64); ok {
		recordedAt = time.Unix(int64(ts), 0)
	}

	return lat, lng, recordedAt, nil
}

// PublishOrderUpdate publishes an order status change to Redis pub/sub
// for interested sidecar consumers.
func PublishOrderUpdate(ctx context.Context, orderID uint, status string, data map[string]interface{}) error {
	updateData := map[string]interface{}{
		"orderId":   orderID,
		"status":    status,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "order:updates", jsonData).Err()
}

// PublishDriverPosition publishes a driver position ping to Redis
// pub/sub.
func PublishDriverPosition(ctx context.Context, driverID uint, lat, lng float64) error {
	positionData := map[string]interface{}{
		"driverId": driverID,
		"location": map[string]float64{
			"lat": lat,
			"lng": lng,
		},
		"timestamp": time.Now().Unix(),
	}

	data, err := json.Marshal(positionData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "driver:position:updates", data).Err()
}
