package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/openplay/roster-service/pkg/logger"
)

type Producer interface {
	PublishRosterJoined(ctx context.Context, ev RosterJoinedEvent) error
	PublishRosterLeft(ctx context.Context, ev RosterLeftEvent) error
	PublishRosterPromoted(ctx context.Context, ev RosterPromotedEvent) error
	PublishAttendanceConfirmed(ctx context.Context, ev AttendanceConfirmedEvent) error
	Close() error
}

type kafkaProducer struct {
	prod sarama.SyncProducer
	l    logger.Logger
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &kafkaProducer{prod: prod, l: l}
}

func (p *kafkaProducer) PublishRosterJoined(ctx context.Context, ev RosterJoinedEvent) error {
	ev.Timestamp = time.Now()
	return p.publish(ctx, TopicRosterJoined, ev.GameID, ev)
}

func (p *kafkaProducer) PublishRosterLeft(ctx context.Context, ev RosterLeftEvent) error {
	ev.Timestamp = time.Now()
	return p.publish(ctx, TopicRosterLeft, ev.GameID, ev)
}

func (p *kafkaProducer) PublishRosterPromoted(ctx context.Context, ev RosterPromotedEvent) error {
	ev.Timestamp = time.Now()
	return p.publish(ctx, TopicRosterPromoted, ev.GameID, ev)
}

func (p *kafkaProducer) PublishAttendanceConfirmed(ctx context.Context, ev AttendanceConfirmedEvent) error {
	ev.Timestamp = time.Now()
	return p.publish(ctx, TopicAttendanceConfirmed, ev.GameID, ev)
}

func (p *kafkaProducer) publish(ctx context.Context, topic, key string, ev any) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		// Key by game id so one game's events share a partition.
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.prod.SendMessage(msg)
	if err != nil {
		p.l.Errorf(ctx, "Failed to send kafka message - topic: %s, error: %v", topic, err)
		return fmt.Errorf("failed to send kafka message: %w", err)
	}

	p.l.Debugf(ctx, "Kafka message sent - topic: %s, partition: %d, offset: %d", topic, partition, offset)
	return nil
}

func (p *kafkaProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
