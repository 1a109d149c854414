package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sire-dashboard/internal/domain"
)

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func newTestWriter(mw messageWriter) *Writer {
	return &Writer{writer: mw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := domain.AggregatedRecord{
		MicroRegion:   "ESPINHARAS",
		IndicatorCode: "IN200",
		Year:          "2023",
		Month:         "Janeiro",
		Value:         96.3,
	}

	msg, err := serializeToMessage(rec, 3, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("ESPINHARAS|IN200|2023|Janeiro"), msg.Key)
	assert.JSONEq(t, `{"microrregiao":"ESPINHARAS","sigla":"IN200","ano":"2023","mes":"Janeiro","valor":96.3}`, string(msg.Value))
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "micro_region", msg.Headers[0].Key)
	assert.Equal(t, []byte("ESPINHARAS"), msg.Headers[0].Value)
	assert.Equal(t, []byte("3"), msg.Headers[1].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestPublish(t *testing.T) {
	rw := &recordingWriter{}
	w := newTestWriter(rw)

	err := w.Publish(context.Background(), domain.RegionSnapshot{
		Generation:  2,
		PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Records: []domain.AggregatedRecord{
			{MicroRegion: "ESPINHARAS", IndicatorCode: "IN200", Year: "2023", Month: "Janeiro", Value: 96.3},
			{MicroRegion: "BORBOREMA", IndicatorCode: "IN200", Year: "2023", Month: "Janeiro", Value: 90},
		},
	})
	require.NoError(t, err)
	require.Len(t, rw.msgs, 2)
	assert.Equal(t, "BORBOREMA|IN200|2023|Janeiro", string(rw.msgs[1].Key))

	require.NoError(t, w.Close())
	assert.True(t, rw.closed)
}

func TestPublish_Empty(t *testing.T) {
	rw := &recordingWriter{err: errors.New("must not be called")}
	w := newTestWriter(rw)
	require.NoError(t, w.Publish(context.Background(), domain.RegionSnapshot{Generation: 1}))
}

func TestPublish_WriteError(t *testing.T) {
	rw := &recordingWriter{err: errors.New("broker unavailable")}
	w := newTestWriter(rw)
	err := w.Publish(context.Background(), domain.RegionSnapshot{Records: []domain.AggregatedRecord{{MicroRegion: "X"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}
