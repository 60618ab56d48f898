// Package kafka prepares the job topic and probes broker readiness before producers/consumers start
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
)

// InitKafkaTopics создает топики; уже существующие считаются успехом
func InitKafkaTopics(ctx context.Context, brokerAddr string, delay time.Duration, topics ...string) error {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := kafkago.CreateTopicsRequest{
		Topics: make([]kafkago.TopicConfig, 0, len(topics)),
	}

	for _, t := range topics {
		req.Topics = append(req.Topics, kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}

	for {
		resp, err := client.CreateTopics(ctx, &req)
		if err == nil && topicsReady(resp.Errors) {
			zlog.Logger.Info().Strs("topics", topics).Msg("All topics are ready")
			return nil
		}
		if err != nil {
			zlog.Logger.Warn().Err(err).Dur("retry_in", delay).Msg("Failed to run topics creation request")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("topics creation canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func topicsReady(errs map[string]error) bool {
	ready := true
	for topic, err := range errs {
		if err == nil || errors.Is(err, kafkago.TopicAlreadyExists) {
			continue
		}
		zlog.Logger.Error().Err(err).Str("topic", topic).Msg("Topic creation error")
		ready = false
	}
	return ready
}

// WaitKafkaReady blocks until the broker accepts TCP connections or ctx is done.
func WaitKafkaReady(ctx context.Context, brokerAddr string, delay time.Duration) error {
	for {
		conn, err := kafkago.DialContext(ctx, "tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				zlog.Logger.Warn().Err(errConn).Msg("Failed to close connection after testing Kafka readiness")
			}
			zlog.Logger.Info().Str("broker", brokerAddr).Msg("Kafka is ready")
			return nil
		}
		zlog.Logger.Info().Dur("retry_in", delay).Msg("Kafka not ready")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
