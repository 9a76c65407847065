package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/repository"
	"github.com/jwalitptl/medbot-api/pkg/logger"
)

func record(name string) model.HealthRecord {
	return model.HealthRecord{
		FileName:  name,
		Timestamp: "2025-01-01T10:00:00",
		HeartRate: model.HeartRate{Label: "Heart Rate", Value: "72", Unit: "BPM"},
		Symptoms:  model.LabeledList{Label: "Symptoms", Items: []string{"fatigue"}},
	}
}

func TestRecordRepository_EmptyStore(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRecordRepository(filepath.Join(t.TempDir(), "rag", "ecg.json"), 50, logger.Nop())
	require.NoError(t, err)

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = repo.Latest(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, repo.Ping(ctx))
}

func TestRecordRepository_AppendIsNewestFirstAndPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ecg.json")
	repo, err := NewRecordRepository(path, 50, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, repo.Append(ctx, record("a.png")))
	require.NoError(t, repo.Append(ctx, record("b.png")))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b.png", latest.FileName)

	reopened, err := NewRecordRepository(path, 50, logger.Nop())
	require.NoError(t, err)
	all, err := reopened.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b.png", all[0].FileName)
	assert.Equal(t, "a.png", all[1].FileName)
	assert.Equal(t, []string{"fatigue"}, all[1].Symptoms.Items)
}

func TestRecordRepository_CapDropsOldest(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRecordRepository(filepath.Join(t.TempDir(), "ecg.json"), 50, logger.Nop())
	require.NoError(t, err)

	for i := 0; i < 51; i++ {
		require.NoError(t, repo.Append(ctx, record(fmt.Sprintf("r%02d.png", i))))
	}

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 50)
	assert.Equal(t, "r50.png", all[0].FileName)
	assert.Equal(t, "r01.png", all[49].FileName)

	_, err = repo.FindByFileName(ctx, "r00.png")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordRepository_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRecordRepository(filepath.Join(t.TempDir(), "ecg.json"), 50, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, record("a.png")))

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	all[0].FileName = "mutated"
	all[0].Symptoms.Items[0] = "mutated"

	again, err := repo.FindByFileName(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, "fatigue", again.Symptoms.Items[0])
}

func TestRecordRepository_CorruptFileStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ecg.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	repo, err := NewRecordRepository(path, 50, logger.Nop())
	require.NoError(t, err)

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, repo.Append(ctx, record("a.png")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fileName": "a.png"`)
}

func TestRecordRepository_OversizedFileIsTrimmed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ecg.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"fileName":"a"},{"fileName":"b"},{"fileName":"c"}]`), 0o644))

	repo, err := NewRecordRepository(path, 2, logger.Nop())
	require.NoError(t, err)

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].FileName)
}

func TestRecordRepository_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRecordRepository(filepath.Join(t.TempDir(), "ecg.json"), 50, logger.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Append(ctx, record(fmt.Sprintf("r%d.png", i))))
			_, _ = repo.LoadAll(ctx)
		}(i)
	}
	wg.Wait()

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestOpenLog_RejectsZeroCapacity(t *testing.T) {
	_, err := OpenLog[int](filepath.Join(t.TempDir(), "x.json"), 0, nil, nil)
	assert.Error(t, err)
}

func TestPrescriptionRepository(t *testing.T) {
	ctx := context.Background()
	repo, err := NewPrescriptionRepository(filepath.Join(t.TempDir(), "Prescription.json"), 2, logger.Nop())
	require.NoError(t, err)

	_, err = repo.Latest(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Append(ctx, model.PrescriptionResult{
			OCRText:          text,
			ProcessingStatus: model.PrescriptionStatusSuccess,
			StructuredInfo:   &model.PrescriptionInfo{Medicines: []string{"Paracetamol"}},
		}))
	}

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "three", all[0].OCRText)
	assert.Equal(t, "two", all[1].OCRText)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	latest.StructuredInfo.Medicines[0] = "mutated"

	again, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol", again.StructuredInfo.Medicines[0])
}
