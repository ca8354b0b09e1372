package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hariqueen/G2B-API/internal/bid"
)

const (
	bidKeyPrefix       = "bids:"
	annotationPrefix   = "user_inputs:"
	dismissedUntilKey  = "prefs:collection_notice_dismissed_until"
	annotationModifier = "dashboard_user"

	durationField     = "service_duration_months"
	lastModifiedField = "last_modified_at"
	modifiedByField   = "modified_by"
)

// ConnectRedis opens the realtime key-value store that holds the curated
// grouped bids, the user annotations, and dashboard preferences.
func ConnectRedis(ctx context.Context) (*redis.Client, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
		PoolSize: 10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("error pinging key-value store: %w", err)
	}
	return client, nil
}

// Bids is the curated grouped bid store, keyed "bids:{year}:{month}:{id}"
// with the record's source fields stored as JSON.
type Bids struct {
	rdb *redis.Client
}

func NewBids(rdb *redis.Client) *Bids {
	return &Bids{rdb: rdb}
}

// Snapshot assembles the full grouped tree the recompute contract consumes.
func (b *Bids) Snapshot(ctx context.Context) (bid.GroupedSnapshot, error) {
	snap := make(bid.GroupedSnapshot)

	var cursor uint64
	for {
		keys, next, err := b.rdb.Scan(ctx, cursor, bidKeyPrefix+"*", 200).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan grouped bids: %w", err)
		}

		for _, key := range keys {
			parts := strings.Split(strings.TrimPrefix(key, bidKeyPrefix), ":")
			if len(parts) != 3 {
				continue
			}
			year, month, id := parts[0], parts[1], parts[2]

			raw, err := b.rdb.Get(ctx, key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read grouped bid %s: %w", key, err)
			}

			var fields map[string]any
			if err := json.Unmarshal([]byte(raw), &fields); err != nil {
				// A corrupt entry degrades to absent rather than failing
				// the whole snapshot.
				continue
			}

			if snap[year] == nil {
				snap[year] = make(map[string]map[string]map[string]any)
			}
			if snap[year][month] == nil {
				snap[year][month] = make(map[string]map[string]any)
			}
			snap[year][month][id] = fields
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return snap, nil
}

// Put upserts one curated bid entry.
func (b *Bids) Put(ctx context.Context, year, month, id string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode grouped bid %s: %w", id, err)
	}
	key := fmt.Sprintf("%s%s:%s:%s", bidKeyPrefix, year, month, id)
	if err := b.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write grouped bid %s: %w", key, err)
	}
	return nil
}

// Annotations is the user-input store, one hash per base bid id. Writes set
// only their own fields, so unrelated fields at the same key survive.
type Annotations struct {
	rdb *redis.Client
}

func NewAnnotations(rdb *redis.Client) *Annotations {
	return &Annotations{rdb: rdb}
}

// All returns every annotation keyed by bid id.
func (a *Annotations) All(ctx context.Context) (map[string]bid.Annotation, error) {
	out := make(map[string]bid.Annotation)

	var cursor uint64
	for {
		keys, next, err := a.rdb.Scan(ctx, cursor, annotationPrefix+"*", 200).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotations: %w", err)
		}

		for _, key := range keys {
			fields, err := a.rdb.HGetAll(ctx, key).Result()
			if err != nil {
				return nil, fmt.Errorf("failed to read annotation %s: %w", key, err)
			}
			if len(fields) == 0 {
				continue
			}
			out[strings.TrimPrefix(key, annotationPrefix)] = annotationFromHash(fields)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// Get reads one annotation. The boolean is false when no annotation exists.
func (a *Annotations) Get(ctx context.Context, bidID string) (bid.Annotation, bool, error) {
	fields, err := a.rdb.HGetAll(ctx, annotationPrefix+bidID).Result()
	if err != nil {
		return bid.Annotation{}, false, fmt.Errorf("failed to read annotation for %s: %w", bidID, err)
	}
	if len(fields) == 0 {
		return bid.Annotation{}, false, nil
	}
	return annotationFromHash(fields), true, nil
}

// SetDuration merge-writes the service duration plus modification metadata,
// preserving any other fields already stored at the key.
func (a *Annotations) SetDuration(ctx context.Context, bidID string, months int, now time.Time) error {
	err := a.rdb.HSet(ctx, annotationPrefix+bidID,
		durationField, strconv.Itoa(months),
		lastModifiedField, now.Format("2006-01-02 15:04:05"),
		modifiedByField, annotationModifier,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write annotation for %s: %w", bidID, err)
	}
	return nil
}

func annotationFromHash(fields map[string]string) bid.Annotation {
	months, _ := strconv.Atoi(fields[durationField])
	if months < 0 {
		months = 0
	}
	return bid.Annotation{
		ServiceDurationMonths: months,
		LastModifiedAt:        fields[lastModifiedField],
		ModifiedBy:            fields[modifiedByField],
	}
}

// Prefs persists dashboard preferences; it implements prefs.Store.
type Prefs struct {
	rdb *redis.Client
}

func NewPrefs(rdb *redis.Client) *Prefs {
	return &Prefs{rdb: rdb}
}

func (p *Prefs) DismissedUntil(ctx context.Context) (time.Time, error) {
	raw, err := p.rdb.Get(ctx, dismissedUntilKey).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read dismissal preference: %w", err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (p *Prefs) SetDismissedUntil(ctx context.Context, until time.Time) error {
	if err := p.rdb.Set(ctx, dismissedUntilKey, until.Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("failed to write dismissal preference: %w", err)
	}
	return nil
}
