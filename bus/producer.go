package bus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// Uploader stores media and returns a download link
type Uploader interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// Producer publishes replies to the outbound topic. It implements
// dispatch.Messenger.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	media    Uploader
}

// ProducerConfig is the sarama config used for replies
func ProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.MaxMessageBytes = 16 << 20
	return config
}

// NewProducer connects a sync producer. media may be nil, in which case
// images and clips are inlined in the message.
func NewProducer(brokers []string, topic string, media Uploader) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewProducerFrom(producer, topic, media), nil
}

// NewProducerFrom wraps an existing sync producer
func NewProducerFrom(producer sarama.SyncProducer, topic string, media Uploader) *Producer {
	return &Producer{producer: producer, topic: topic, media: media}
}

// SendText publishes a text reply
func (p *Producer) SendText(ctx context.Context, chatID int64, text string) error {
	return p.publish(Message{ChatID: chatID, Kind: ReplyText, Text: text})
}

// SendImage publishes a PNG with a caption
func (p *Producer) SendImage(ctx context.Context, chatID int64, image []byte, caption string) error {
	msg, err := p.withMedia(ctx, Message{ChatID: chatID, Kind: ReplyImage, Text: caption}, image, "image/png")
	if err != nil {
		return err
	}
	return p.publish(msg)
}

// SendVideo publishes an mp4 clip with a caption
func (p *Producer) SendVideo(ctx context.Context, chatID int64, video []byte, caption string) error {
	msg, err := p.withMedia(ctx, Message{ChatID: chatID, Kind: ReplyVideo, Text: caption}, video, "video/mp4")
	if err != nil {
		return err
	}
	return p.publish(msg)
}

func (p *Producer) withMedia(ctx context.Context, msg Message, data []byte, contentType string) (Message, error) {
	msg.MediaType = contentType
	if p.media == nil {
		msg.Media = data
		return msg, nil
	}
	link, err := p.media.Put(ctx, data, contentType)
	if err != nil {
		return Message{}, fmt.Errorf("store %s: %w", contentType, err)
	}
	msg.MediaURL = link
	return msg, nil
}

func (p *Producer) publish(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(msg.ChatID, 10)),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("kafka send: %w", err)
	}
	log.Debugf("Sent %s reply to chat %d topic=%s partition=%d offset=%d", msg.Kind, msg.ChatID, p.topic, partition, offset)
	return nil
}

// Close closes the underlying producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
