// Package cache regroupe les usages Redis : déduplication des webhooks, rate limit et cache de lecture.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StripeEventTTL = 24 * time.Hour
	stripeEventKey = "stripe_event:"
)

// Cache enveloppe le client Redis.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// --- Déduplication des événements Stripe ---

// IsEventProcessed indique si l'événement a déjà été traité avec succès.
func (c *Cache) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := c.client.Exists(ctx, stripeEventKey+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkEventProcessed mémorise l'événement pendant StripeEventTTL.
func (c *Cache) MarkEventProcessed(ctx context.Context, eventID string) error {
	return c.client.Set(ctx, stripeEventKey+eventID, time.Now().UTC().Format(time.RFC3339), StripeEventTTL).Err()
}

// --- Rate Limiting ---

// IncrementRateLimit incrémente le compteur de la fenêtre et retourne sa valeur.
// La durée de vie n'est posée qu'au premier coup (EXPIRE NX, Redis 7+) : la fenêtre est fixe
// et ne glisse pas à chaque tentative.
func (c *Cache) IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// --- Cache générique ---

// ErrMiss signale une clé absente du cache.
var ErrMiss = errors.New("cache miss")

func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}
