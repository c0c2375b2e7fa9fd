package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	orderkafka "github.com/dmehra2102/Cartified/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/Cartified/pkg/inflight"
	"github.com/dmehra2102/Cartified/pkg/shutdown"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type eventsOptions struct {
	*rootOptions
	Group string
}

func newEventsCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &eventsOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail storefront events published by the outbox relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tailEvents(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Group, "group", "cartified-events", "kafka consumer group")
	return cmd
}

type eventLine struct {
	Type    string          `json:"type"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

func tailEvents(cmd *cobra.Command, opts *eventsOptions) error {
	cfg := opts.cfg
	log := opts.logger()

	ctx, cancel := shutdown.WithSignals(cmd.Context())
	defer cancel()

	var seen inflight.Guard = inflight.NewMemory()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		seen = inflight.NewRedis(rdb, 24*time.Hour)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	consumer := orderkafka.NewConsumer(log, cfg.KafkaAddr, cfg.OutboxTopic, opts.Group, seen,
		func(ctx context.Context, m orderkafka.Message) error {
			if !json.Valid(m.Payload) {
				return fmt.Errorf("event %s: payload is not json", m.Type)
			}
			return enc.Encode(eventLine{Type: m.Type, Key: m.Key, Payload: m.Payload})
		})
	return consumer.Run(ctx)
}
