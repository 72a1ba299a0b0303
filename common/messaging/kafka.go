// Package messaging implements the event bus abstraction of spec §4.6: a
// fan-out Topic (pub/sub, independent subscriptions) and a point-to-point
// Queue (single consumer group, competing consumers), both built on the
// same Sarama consumer-group machinery. The difference between the two is
// entirely in how the consumer group ID is chosen: a Topic subscription
// gets its own group ID per subscriber so every subscriber sees every
// message; a Queue pins every competing consumer onto one shared group ID
// so Kafka's per-partition exclusivity gives point-to-point delivery.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Publisher sends events onto a topic or queue.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
	Close() error
}

// MessageHandler processes one bus message. Returning a non-nil error
// leaves the message unacknowledged so the bus redelivers it (§4.6, §4.3
// step 4).
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the bus-agnostic envelope handed to a MessageHandler.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Consumer subscribes to one or more topics/queues under a single
// consumer group.
type Consumer interface {
	Subscribe(topics []string, handler MessageHandler) error
	Close() error
}

// KafkaPublisher is a Sarama-backed Publisher.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
}

// NewKafkaPublisher dials brokers and returns a ready Publisher. Producer
// idempotence is enabled so a producer-level retry never double-appends
// to the log; it does not, by itself, make handler-level
// publish-then-ack sequences exactly-once (see §4.3).
func NewKafkaPublisher(brokers []string, logger *zap.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaPublisher{
		producer: producer,
		logger:   logger,
	}, nil
}

// Publish marshals event as JSON and sends it to topic, keyed by key (the
// coordinator and custodian always key by orderId so all events for one
// order land on the same partition and are never reordered relative to
// each other by a single producer).
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to send message",
			zap.Error(err),
			zap.String("topic", topic),
			zap.String("key", key))
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Info("message sent successfully",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// Close releases the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// KafkaConsumer is a Sarama consumer-group-backed Consumer. Whether it
// behaves as a Topic subscription or a Queue is determined entirely by
// the groupID passed to the constructor (see package doc).
type KafkaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	logger        *zap.Logger
}

// NewTopicSubscriber returns a Consumer for a fan-out Topic subscription.
// subscriptionName should be unique per logical subscriber (e.g.
// "order-service-sub") so every subscriber of the topic gets its own copy
// of every message.
func NewTopicSubscriber(brokers []string, subscriptionName string, logger *zap.Logger) (*KafkaConsumer, error) {
	return newConsumerGroup(brokers, subscriptionName, logger)
}

// NewQueueConsumer returns a Consumer for a point-to-point Queue.
// queueGroupID must be shared by every process competing to drain the
// queue (e.g. "inventory-verify-group") so exactly one of them gets each
// message.
func NewQueueConsumer(brokers []string, queueGroupID string, logger *zap.Logger) (*KafkaConsumer, error) {
	return newConsumerGroup(brokers, queueGroupID, logger)
}

func newConsumerGroup(brokers []string, groupID string, logger *zap.Logger) (*KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &KafkaConsumer{
		consumerGroup: consumerGroup,
		logger:        logger,
	}, nil
}

// Subscribe starts consuming topics in the background, invoking handler
// for each message. A message's offset is committed (acknowledged) only
// once handler returns nil; a non-nil return leaves the offset
// uncommitted, so the next rebalance or restart redelivers the message
// (§4.3 step 4).
func (c *KafkaConsumer) Subscribe(topics []string, handler MessageHandler) error {
	ctx := context.Background()
	consumerHandler := &consumerGroupHandler{
		consumer: c,
		handler:  handler,
	}

	go func() {
		for {
			if err := c.consumerGroup.Consume(ctx, topics, consumerHandler); err != nil {
				c.logger.Error("error from consumer", zap.Error(err))
			}

			if ctx.Err() != nil {
				return
			}
		}
	}()

	return nil
}

// Close releases the underlying consumer group.
func (c *KafkaConsumer) Close() error {
	return c.consumerGroup.Close()
}

type consumerGroupHandler struct {
	consumer *KafkaConsumer
	handler  MessageHandler
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		msg := &Message{
			Topic:     message.Topic,
			Partition: message.Partition,
			Offset:    message.Offset,
			Key:       message.Key,
			Value:     message.Value,
		}

		h.consumer.logger.Info("message received",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.String("key", string(message.Key)))

		if err := h.handler(session.Context(), msg); err != nil {
			h.consumer.logger.Error("failed to handle message, leaving unacked for redelivery",
				zap.Error(err),
				zap.String("topic", message.Topic),
				zap.Int64("offset", message.Offset))
			// Stop this claim instead of moving on: marking a later message
			// would commit past this one. Ending the claim ends the session,
			// and the next Consume resumes from the last committed offset.
			return err
		}

		session.MarkMessage(message, "")
	}

	return nil
}

// PublishWithOrderID keys a publish by orderID so all events for one order
// are totally ordered relative to each other within a single producer.
func PublishWithOrderID(ctx context.Context, publisher Publisher, topic string, orderID string, event interface{}) error {
	return publisher.Publish(ctx, topic, orderID, event)
}

// Topic names used by this protocol (§4.6).
const (
	TopicOrderEvents     = "order-events"
	TopicInventoryEvents = "inventory-events"
)

// QueueVerifyOrders is the point-to-point queue carrying VerifyOrder
// messages (§4.3).
const QueueVerifyOrders = "verify-orders"

// OrderServiceSubscription is the Order Event Consumer's subscription
// name on inventory-events (§4.5).
const OrderServiceSubscription = "order-service-sub"

// InventoryVerifyGroup is the shared consumer-group ID every Inventory
// Custodian process uses to compete for verify-orders messages.
const InventoryVerifyGroup = "inventory-verify-group"
