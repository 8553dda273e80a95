package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sidelinehq/sideline/internal/errors"
	"github.com/sidelinehq/sideline/internal/match/service"
)

// Commands is the slice of the match service the bot consumer drives.
type Commands interface {
	StartMatch(ctx context.Context, input service.StartMatchInput) (service.MatchSummary, error)
	RecordEvent(ctx context.Context, input service.RecordEventInput) (service.MatchState, error)
	CompleteMatch(ctx context.Context, input service.CompleteMatchInput) (service.MatchResult, error)
	RequestAdvice(ctx context.Context, input service.RequestAdviceInput) (service.Advice, error)
	GetMatch(ctx context.Context, id string) (service.MatchSummary, error)
	GetLiveMatchByChat(ctx context.Context, chatID string) (service.MatchSummary, error)
}

// BotConsumerConfig names the queues of the bot command channel.
type BotConsumerConfig struct {
	RequestQueue  string
	ResponseQueue string
}

// BotConsumer consumes bot commands, dispatches them to the match
// service, and publishes correlated replies to the queue each request
// names.
type BotConsumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	requests string
	commands Commands
	logger   *log.Logger
	clock    func() time.Time
}

// NewBotConsumer dials the broker and declares the request and response
// queues as durable.
func NewBotConsumer(url string, cfg BotConsumerConfig, commands Commands, logger *log.Logger) (*BotConsumer, error) {
	if logger == nil {
		logger = log.Default()
	}
	conn, err := dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	for _, queue := range []string{cfg.RequestQueue, cfg.ResponseQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
	}
	return &BotConsumer{
		conn:     conn,
		ch:       ch,
		requests: cfg.RequestQueue,
		commands: commands,
		logger:   logger,
		clock:    time.Now,
	}, nil
}

// Run consumes bot requests until the context is canceled. Requests that
// fail to decode are rejected without requeue; reply publish failures
// requeue the request.
func (c *BotConsumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.requests, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.requests, err)
	}
	c.logger.Printf("consuming bot requests from %s", c.requests)

	for d := range deliveries {
		var req botRequest
		if err := json.Unmarshal(d.Body, &req); err != nil {
			c.logger.Printf("decode bot request: %v", err)
			_ = d.Reject(false)
			continue
		}
		if req.Action == "" || req.CorrelationID == "" || req.ReplyTo == "" {
			c.logger.Printf("bot request missing action, correlation_id, or reply_to")
			_ = d.Ack(false)
			continue
		}

		reply := c.handle(ctx, req)
		reply["correlation_id"] = req.CorrelationID
		body, err := json.Marshal(reply)
		if err != nil {
			c.logger.Printf("marshal bot reply: %v", err)
			_ = d.Reject(false)
			continue
		}
		err = c.ch.PublishWithContext(ctx, "", req.ReplyTo, false, false, amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: req.CorrelationID,
			DeliveryMode:  amqp.Persistent,
			Body:          body,
		})
		if err != nil {
			c.logger.Printf("publish bot reply: %v", err)
			_ = d.Reject(true)
			continue
		}
		_ = d.Ack(false)
	}
	return ctx.Err()
}

// Close closes the channel and connection.
func (c *BotConsumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

type botRequest struct {
	Action        string      `json:"action"`
	CorrelationID string      `json:"correlation_id"`
	ReplyTo       string      `json:"reply_to"`
	ChatID        json.Number `json:"chat_id"`
	MatchID       string      `json:"match_id"`
	TeamAName     string      `json:"team_a_name"`
	TeamBName     string      `json:"team_b_name"`
	CompositionA  []int       `json:"composition_a"`
	CompositionB  []int       `json:"composition_b"`
	PlayerNumber  int         `json:"player_number"`
	TeamID        int         `json:"team_id"`
	ActionType    string      `json:"action_type"`
	Result        string      `json:"result"`
	Timestamp     string      `json:"timestamp"`
	Winner        int         `json:"winner"`
}

// handle dispatches one bot request and builds the reply body, minus the
// correlation id the caller stamps on every reply.
func (c *BotConsumer) handle(ctx context.Context, req botRequest) map[string]any {
	switch req.Action {
	case "get_live_match":
		summary, err := c.commands.GetLiveMatchByChat(ctx, req.ChatID.String())
		if errors.IsNotFound(err) {
			return map[string]any{"matches": []service.MatchSummary{}}
		}
		if err != nil {
			return map[string]any{"error": err.Error(), "matches": []service.MatchSummary{}}
		}
		return map[string]any{"matches": []service.MatchSummary{summary}}

	case "get_match":
		summary, err := c.commands.GetMatch(ctx, req.MatchID)
		if err != nil {
			return map[string]any{"error": err.Error(), "match": nil}
		}
		return map[string]any{"match": summary}

	case "create_match":
		summary, err := c.commands.StartMatch(ctx, service.StartMatchInput{
			ChatID:       req.ChatID.String(),
			TeamAName:    req.TeamAName,
			TeamBName:    req.TeamBName,
			CompositionA: req.CompositionA,
			CompositionB: req.CompositionB,
		})
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{"match": summary}

	case "record_event":
		var ts time.Time
		if req.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339, req.Timestamp)
			if err != nil {
				return map[string]any{"error": fmt.Sprintf("bad timestamp: %v", err), "match_state": nil}
			}
			ts = parsed
		}
		state, err := c.commands.RecordEvent(ctx, service.RecordEventInput{
			MatchID:      req.MatchID,
			PlayerNumber: req.PlayerNumber,
			TeamID:       req.TeamID,
			ActionType:   req.ActionType,
			Result:       req.Result,
			Timestamp:    ts,
		})
		if err != nil {
			// The bot treats a conflict as "match already over" and stops
			// offering scoring buttons.
			if errors.IsConflict(err) {
				return map[string]any{
					"error": err.Error(),
					"match_state": map[string]any{
						"status": "COMPLETED",
						"error":  "match_completed",
					},
				}
			}
			return map[string]any{"error": err.Error(), "match_state": nil}
		}
		return map[string]any{"match_state": state}

	case "complete_match":
		result, err := c.commands.CompleteMatch(ctx, service.CompleteMatchInput{
			MatchID: req.MatchID,
			Winner:  req.Winner,
		})
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{"result": result}

	case "request_advice":
		advice, err := c.commands.RequestAdvice(ctx, service.RequestAdviceInput{MatchID: req.MatchID})
		if err != nil {
			return map[string]any{"error": err.Error(), "status": "error"}
		}
		return map[string]any{
			"chat_id":   req.ChatID.String(),
			"advice":    advice.Advice,
			"timestamp": c.clock().UTC().Format(time.RFC3339),
			"status":    "success",
		}
	}
	return map[string]any{"error": fmt.Sprintf("unknown action %q", req.Action)}
}
