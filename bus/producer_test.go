package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	err   error
	types []string
}

func (u *fakeUploader) Put(_ context.Context, _ []byte, contentType string) (string, error) {
	u.types = append(u.types, contentType)
	return "http://media/" + contentType, u.err
}

// expectMessage checks the published payload against want
func expectMessage(t *testing.T, want Message) mocks.ValueChecker {
	return func(val []byte) error {
		var got Message
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if !assert.Equal(t, want, got) {
			return fmt.Errorf("unexpected message %+v", got)
		}
		return nil
	}
}

func TestProducer_SendText(t *testing.T) {
	t.Parallel()

	mock := mocks.NewSyncProducer(t, ProducerConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(
		expectMessage(t, Message{ChatID: 7, Kind: ReplyText, Text: "hello"}))

	p := NewProducerFrom(mock, "replies", nil)
	require.NoError(t, p.SendText(context.Background(), 7, "hello"))
	require.NoError(t, p.Close())
}

func TestProducer_InlinesMediaWithoutStore(t *testing.T) {
	t.Parallel()

	mock := mocks.NewSyncProducer(t, ProducerConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(expectMessage(t, Message{
		ChatID: 7, Kind: ReplyImage, Text: "look", MediaType: "image/png", Media: []byte{1, 2, 3},
	}))

	p := NewProducerFrom(mock, "replies", nil)
	require.NoError(t, p.SendImage(context.Background(), 7, []byte{1, 2, 3}, "look"))
	require.NoError(t, p.Close())
}

func TestProducer_UploadsMediaToStore(t *testing.T) {
	t.Parallel()

	mock := mocks.NewSyncProducer(t, ProducerConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(expectMessage(t, Message{
		ChatID: 9, Kind: ReplyVideo, Text: "clip", MediaType: "video/mp4", MediaURL: "http://media/video/mp4",
	}))

	up := &fakeUploader{}
	p := NewProducerFrom(mock, "replies", up)
	require.NoError(t, p.SendVideo(context.Background(), 9, []byte{0, 0, 0, 1}, "clip"))
	require.NoError(t, p.Close())
	assert.Equal(t, []string{"video/mp4"}, up.types)
}

func TestProducer_Errors(t *testing.T) {
	t.Parallel()

	mock := mocks.NewSyncProducer(t, ProducerConfig())
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(mock, "replies", &fakeUploader{err: errors.New("bucket gone")})
	err := p.SendImage(context.Background(), 1, []byte{1}, "")
	require.ErrorContains(t, err, "bucket gone")

	p = NewProducerFrom(mock, "replies", nil)
	err = p.SendText(context.Background(), 1, "hi")
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}
