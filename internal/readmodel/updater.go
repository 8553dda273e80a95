// Package readmodel maintains a Redis projection of match state built
// from the published domain events. Other services read the projection
// instead of the primary store, so a stale or missing entry is a cache
// miss, never an error in the command path.
package readmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sidelinehq/sideline/internal/match/domain"
)

const (
	matchKeyPrefix = "match:"
	liveIndexKey   = "matches:live"
)

// CachedMatch is the projected match snapshot stored per match.
type CachedMatch struct {
	Version    int       `json:"version"`
	CachedAt   time.Time `json:"cachedAt"`
	MatchID    string    `json:"match_id"`
	TeamAName  string    `json:"team_a_name"`
	TeamBName  string    `json:"team_b_name"`
	Status     string    `json:"status"`
	CurrentSet int       `json:"current_set"`
	ScoreA     int       `json:"score_a"`
	ScoreB     int       `json:"score_b"`
	SetScores  [][2]int  `json:"set_scores"`
	Winner     int       `json:"winner,omitempty"`
}

// Updater applies domain events to the Redis projection.
type Updater struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
}

// NewUpdater creates an updater writing snapshots with the given TTL.
func NewUpdater(client *redis.Client, ttl time.Duration, logger *log.Logger) *Updater {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Updater{
		redis:  client,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

type eventPayload struct {
	Type        string   `json:"type"`
	MatchID     string   `json:"match_id"`
	TeamA       string   `json:"team_a"`
	TeamB       string   `json:"team_b"`
	NewScoreA   int      `json:"new_score_a"`
	NewScoreB   int      `json:"new_score_b"`
	CurrentSet  int      `json:"current_set"`
	SetNumber   int      `json:"set_number"`
	Winner      int      `json:"winner"`
	FinalScoreA int      `json:"final_score_a"`
	FinalScoreB int      `json:"final_score_b"`
	TotalSets   int      `json:"total_sets"`
	SetScores   [][2]int `json:"final_set_scores"`
}

// Apply folds one published domain event into the projection.
func (u *Updater) Apply(ctx context.Context, body []byte) error {
	var event eventPayload
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if event.MatchID == "" {
		return fmt.Errorf("event has no match id")
	}

	switch domain.EventKind(event.Type) {
	case domain.KindMatchStarted:
		snapshot := CachedMatch{
			Version:    1,
			CachedAt:   u.now().UTC(),
			MatchID:    event.MatchID,
			TeamAName:  event.TeamA,
			TeamBName:  event.TeamB,
			Status:     string(domain.StatusLive),
			CurrentSet: 1,
		}
		if err := u.write(ctx, snapshot); err != nil {
			return err
		}
		return u.redis.SAdd(ctx, liveIndexKey, event.MatchID).Err()

	case domain.KindPointScored:
		snapshot, err := u.load(ctx, event.MatchID)
		if err != nil {
			return err
		}
		snapshot.ScoreA = event.NewScoreA
		snapshot.ScoreB = event.NewScoreB
		snapshot.CurrentSet = event.CurrentSet
		return u.write(ctx, snapshot)

	case domain.KindSetCompleted:
		snapshot, err := u.load(ctx, event.MatchID)
		if err != nil {
			return err
		}
		snapshot.SetScores = append(snapshot.SetScores, [2]int{event.FinalScoreA, event.FinalScoreB})
		snapshot.ScoreA = 0
		snapshot.ScoreB = 0
		return u.write(ctx, snapshot)

	case domain.KindMatchCompleted:
		snapshot, err := u.load(ctx, event.MatchID)
		if err != nil {
			return err
		}
		snapshot.Status = string(domain.StatusCompleted)
		snapshot.Winner = event.Winner
		if len(event.SetScores) > 0 {
			snapshot.SetScores = event.SetScores
		}
		if err := u.write(ctx, snapshot); err != nil {
			return err
		}
		return u.redis.SRem(ctx, liveIndexKey, event.MatchID).Err()
	}
	return fmt.Errorf("unknown event type %q", event.Type)
}

// GetMatch reads the projected snapshot for a match.
func (u *Updater) GetMatch(ctx context.Context, matchID string) (CachedMatch, error) {
	raw, err := u.redis.Get(ctx, matchKeyPrefix+matchID).Bytes()
	if err != nil {
		return CachedMatch{}, fmt.Errorf("read snapshot for %s: %w", matchID, err)
	}
	var snapshot CachedMatch
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return CachedMatch{}, fmt.Errorf("decode snapshot for %s: %w", matchID, err)
	}
	return snapshot, nil
}

// ListLive returns the ids of matches in the live index.
func (u *Updater) ListLive(ctx context.Context) ([]string, error) {
	ids, err := u.redis.SMembers(ctx, liveIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read live index: %w", err)
	}
	return ids, nil
}

// load fetches the current snapshot, or a skeleton when events arrive
// out of order and the started event was missed.
func (u *Updater) load(ctx context.Context, matchID string) (CachedMatch, error) {
	raw, err := u.redis.Get(ctx, matchKeyPrefix+matchID).Bytes()
	if err == redis.Nil {
		return CachedMatch{
			Version:    1,
			MatchID:    matchID,
			Status:     string(domain.StatusLive),
			CurrentSet: 1,
		}, nil
	}
	if err != nil {
		return CachedMatch{}, fmt.Errorf("read snapshot for %s: %w", matchID, err)
	}
	var snapshot CachedMatch
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return CachedMatch{}, fmt.Errorf("decode snapshot for %s: %w", matchID, err)
	}
	return snapshot, nil
}

func (u *Updater) write(ctx context.Context, snapshot CachedMatch) error {
	snapshot.CachedAt = u.now().UTC()
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", snapshot.MatchID, err)
	}
	if err := u.redis.Set(ctx, matchKeyPrefix+snapshot.MatchID, raw, u.ttl).Err(); err != nil {
		return fmt.Errorf("write snapshot for %s: %w", snapshot.MatchID, err)
	}
	return nil
}

// EventSource yields broker deliveries carrying domain events.
type EventSource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

// Run consumes domain events and folds them into the projection until
// the context ends. Events that fail to apply are rejected without
// requeue so a poison message cannot wedge the projection.
func (u *Updater) Run(ctx context.Context, source EventSource) error {
	deliveries, err := source.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("open event source: %w", err)
	}
	for d := range deliveries {
		if err := u.Apply(ctx, d.Body); err != nil {
			u.logger.Printf("apply %s: %v", d.RoutingKey, err)
			_ = d.Reject(false)
			continue
		}
		_ = d.Ack(false)
	}
	return ctx.Err()
}
