//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/acquire"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/filestore"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/kafka"
	"github.com/couchcryptid/seisdb-acquire/internal/config"
	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	"github.com/couchcryptid/seisdb-acquire/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-archived-waveforms"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker for the duration of the test.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("seisdb-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// staticFinder returns the same channels for every query.
type staticFinder []domain.Channel

func (f staticFinder) FindChannels(context.Context, domain.ChannelQuery) ([]domain.Channel, error) {
	return f, nil
}

// memorySource serves a fixed payload for every channel.
type memorySource struct{}

func (memorySource) Waveforms(_ context.Context, _ domain.Provider, id domain.NSLC, _ domain.TimeWindow) ([]byte, error) {
	return []byte("miniseed:" + id.Key()), nil
}

func (memorySource) StationXML(context.Context, domain.Provider, string, string, domain.TimeWindow) ([]byte, error) {
	return []byte("<FDSNStationXML/>"), nil
}

func (memorySource) Spans(context.Context, domain.Provider, domain.NSLC, domain.TimeWindow) ([]domain.AvailabilityRecord, error) {
	return nil, domain.ErrUnsupported
}

// TestDownloaderPublishesArchivedFiles runs a download against in-memory
// services and reads the archive notifications back from Kafka.
func TestDownloaderPublishesArchivedFiles(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	notifier := kafka.NewNotifier(cfg, discardLogger())
	defer notifier.Close()

	provider := domain.Provider{Name: "TEST"}
	channels := staticFinder{
		{NSLC: domain.NSLC{Network: "IU", Station: "ANMO", Location: "00", Channel: "BHZ"}, Latitude: 34.9, Longitude: -106.5, Provider: provider},
		{NSLC: domain.NSLC{Network: "IU", Station: "COLA", Location: "00", Channel: "BHZ"}, Latitude: 64.9, Longitude: -147.8, Provider: provider},
	}
	event := domain.Event{OriginTime: time.Date(2024, 1, 1, 7, 10, 9, 0, time.UTC), Latitude: 37.5, Longitude: 137.2, Depth: 10, Magnitude: 7.5}

	store := filestore.New(t.TempDir())
	d := acquire.NewDownloader(channels, memorySource{}, nil, store, notifier, acquire.Options{
		Window: domain.WindowSpec{EndOffset: 30 * time.Minute},
		Region: func(domain.Event) domain.Region { return domain.Region{} },
	}, discardLogger(), observability.NewMetricsForTesting())

	s, err := d.Run(ctx, []domain.Event{event})
	require.NoError(t, err)
	require.Equal(t, 2, s.Archived)

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer reader.Close()

	got := map[string]domain.ArchivedFile{}
	for range 2 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := reader.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read archive notification")

		assert.Equal(t, "20240101071009", string(msg.Key))
		var file domain.ArchivedFile
		require.NoError(t, json.Unmarshal(msg.Value, &file))
		got[file.NSLC.Key()] = file

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, file.NSLC.Key(), headers["nslc"])
		assert.Equal(t, "TEST", headers["provider"])
	}

	require.Contains(t, got, "IU.ANMO.00.BHZ")
	anmo := got["IU.ANMO.00.BHZ"]
	exists, err := store.Exists(anmo.Path)
	require.NoError(t, err)
	assert.True(t, exists, "notified path exists in the archive")
	assert.Equal(t, len("miniseed:IU.ANMO.00.BHZ"), anmo.Size)
}
