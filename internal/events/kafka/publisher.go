package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
)

type TargetDto struct {
	IP   string `json:"ip"`
	Port int32  `json:"port"`
}

// ChangeEvent is published once per run that issued register or deregister
// calls. Messages are keyed by target group so one group stays ordered.
type ChangeEvent struct {
	RunID           string      `json:"run_id"`
	TargetGroup     string      `json:"target_group"`
	Database        string      `json:"database_id"`
	Zone            string      `json:"zone"`
	Registered      []string    `json:"registered"`
	Desired         []string    `json:"desired"`
	Registrations   []TargetDto `json:"registrations"`
	Deregistrations []TargetDto `json:"deregistrations"`
	Errors          []string    `json:"errors,omitempty"`
	TsMs            int64       `json:"ts_ms"`
}

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, rec models.RunRecord) error {
	msg, err := newMessage(rec)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to write change event for run %s: %w", rec.RunID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newMessage(rec models.RunRecord) (kafka.Message, error) {
	event := ChangeEvent{
		RunID:           rec.RunID,
		TargetGroup:     string(rec.TargetGroup),
		Database:        string(rec.Database),
		Zone:            rec.Zone,
		Registered:      nonNil(rec.Registered),
		Desired:         nonNil(rec.Desired),
		Registrations:   targetDtos(rec.Registrations),
		Deregistrations: targetDtos(rec.Deregistrations),
		Errors:          rec.Errors,
		TsMs:            rec.FinishedAt.UnixMilli(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode change event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(rec.TargetGroup),
		Value: value,
		Time:  rec.FinishedAt,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func targetDtos(targets []models.Target) []TargetDto {
	result := make([]TargetDto, 0, len(targets))
	for _, target := range targets {
		result = append(result, TargetDto{IP: target.Addr, Port: target.Port})
	}
	return result
}
