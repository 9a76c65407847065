package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medbot-api/internal/config"
	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/messaging"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Store.Backend = backend
	cfg.Store.RecordsPath = filepath.Join(dir, "ecg.json")
	cfg.Store.PrescriptionsPath = filepath.Join(dir, "rx.json")
	cfg.Store.MaxRecords = 2
	cfg.Store.RedisKey = "test:records"
	cfg.Alerts.MinLevel = "critical"
	return cfg
}

func testRecord(name string) model.HealthRecord {
	return model.HealthRecord{FileName: name, Urgency: model.Assessment{Level: model.LevelLow}}
}

func TestOpenStores_JSONFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "jsonfile")
	m := metrics.NewMetrics("test", "", prometheus.NewRegistry())

	stores, err := OpenStores(ctx, cfg, logger.Nop(), m)
	require.NoError(t, err)
	defer stores.Close()

	svc := NewRecordService(cfg, stores, messaging.NopBroker{}, logger.Nop(), m)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		require.NoError(t, svc.Store(ctx, testRecord(name)))
	}

	all, err := stores.Records.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c.png", all[0].FileName)
	assert.FileExists(t, cfg.Store.RecordsPath)
}

func TestOpenStores_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := testConfig(t, "redis")
	cfg.Redis.URL = "redis://" + mr.Addr()

	stores, err := OpenStores(ctx, cfg, logger.Nop(), nil)
	require.NoError(t, err)
	defer stores.Close()

	require.NoError(t, stores.Records.Append(ctx, testRecord("a.png")))
	assert.True(t, mr.Exists("test:records"))
}

func TestOpenStores_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, "redis")
	cfg.Redis.URL = "redis://" + mr.Addr()
	mr.Close()

	_, err := OpenStores(context.Background(), cfg, logger.Nop(), nil)
	assert.Error(t, err)
}
