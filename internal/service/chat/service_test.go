package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medbot-api/internal/llm"
	"github.com/jwalitptl/medbot-api/internal/matcher"
	"github.com/jwalitptl/medbot-api/internal/model"
	"github.com/jwalitptl/medbot-api/internal/prompt"
	"github.com/jwalitptl/medbot-api/internal/repository"
	"github.com/jwalitptl/medbot-api/pkg/logger"
	"github.com/jwalitptl/medbot-api/pkg/metrics"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeGenerator) Complete(_ context.Context, p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeRecords struct {
	records []model.HealthRecord
	err     error
}

func (f *fakeRecords) LoadAll(context.Context) ([]model.HealthRecord, error) {
	return f.records, f.err
}

func (f *fakeRecords) Append(context.Context, model.HealthRecord) error { return nil }

func (f *fakeRecords) Latest(context.Context) (*model.HealthRecord, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeRecords) FindByFileName(context.Context, string) (*model.HealthRecord, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeRecords) Ping(context.Context) error { return nil }

type fakePrescriptions struct {
	latest *model.PrescriptionResult
}

func (f *fakePrescriptions) LoadAll(context.Context) ([]model.PrescriptionResult, error) {
	return nil, nil
}

func (f *fakePrescriptions) Append(context.Context, model.PrescriptionResult) error { return nil }

func (f *fakePrescriptions) Latest(context.Context) (*model.PrescriptionResult, error) {
	if f.latest == nil {
		return nil, repository.ErrNotFound
	}
	return f.latest, nil
}

var testCatalog = []model.CatalogEntry{
	{ID: "jumping_jacks.fbx", Name: "Jumping Jacks", Description: "full body cardio jumping exercise"},
	{ID: "squat.fbx", Name: "Squat", Description: "lower body strength"},
}

func newTestService(gen llm.TextGenerator, records repository.RecordRepository, m *metrics.Metrics) *Service {
	return NewService(gen, matcher.New(testCatalog), records, &fakePrescriptions{}, NewSequencer(time.Minute),
		Config{MaxWords: 150, MinScore: 0.05, ClipSuffix: ".fbx"}, logger.Nop(), m)
}

func TestReply_ExerciseRequestUsesStructuredPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: `Let's warm up with some jumping jacks! "jumping_jacks.fbx"`}
	svc := newTestService(gen, &fakeRecords{}, nil)

	resp, err := svc.Reply(context.Background(), "s1", "I want to do jumping jacks")

	require.NoError(t, err)
	assert.Equal(t, model.PromptStructured, resp.Kind)
	assert.Equal(t, "jumping_jacks.fbx", resp.Clip)
	require.NotNil(t, resp.Match)
	assert.Equal(t, "jumping_jacks.fbx", resp.Match.ID)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "User: I want to do jumping jacks")
	assert.Contains(t, gen.prompts[0], `"jumping_jacks.fbx"`)
	assert.Contains(t, gen.prompts[0], "two sentences or less")
}

func TestReply_ClipFallsBackToMatchedID(t *testing.T) {
	gen := &fakeGenerator{reply: "Try some squats today."}
	svc := newTestService(gen, &fakeRecords{}, nil)

	resp, err := svc.Reply(context.Background(), "s1", "give me a squat workout")

	require.NoError(t, err)
	assert.Equal(t, "squat.fbx", resp.Clip)
}

func TestReply_NoMatchSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	m := metrics.New("test")
	svc := newTestService(gen, &fakeRecords{}, m)

	resp, err := svc.Reply(context.Background(), "s1", "I want a workout for my elbow")

	require.NoError(t, err)
	assert.Equal(t, model.PromptFallback, resp.Kind)
	assert.Equal(t, prompt.NoMatchMessage, resp.Reply)
	assert.Nil(t, resp.Match)
	assert.Equal(t, 0, gen.calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatReplies.WithLabelValues("fallback", "ok")))
}

func TestReply_EmptyCatalogFallsThroughToDefault(t *testing.T) {
	gen := &fakeGenerator{reply: "Stretching is good."}
	svc := NewService(gen, matcher.New(nil), &fakeRecords{}, nil, nil, Config{}, nil, nil)

	resp, err := svc.Reply(context.Background(), "", "what stretch helps")

	require.NoError(t, err)
	assert.Equal(t, model.PromptDefault, resp.Kind)
	assert.Equal(t, 1, gen.calls())
}

func TestReply_HealthQueryIncludesRecords(t *testing.T) {
	gen := &fakeGenerator{reply: "Your heart rate looks normal."}
	records := &fakeRecords{records: []model.HealthRecord{{
		FileName:  "ecg_1.png",
		Timestamp: "2025-01-01T10:00:00",
		HeartRate: model.HeartRate{Label: "Heart Rate", Value: "72", Unit: "BPM"},
	}}}
	svc := newTestService(gen, records, nil)

	resp, err := svc.Reply(context.Background(), "s1", "What is my heart rate?")

	require.NoError(t, err)
	assert.Equal(t, model.PromptHealth, resp.Kind)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Patient ECG Data:")
	assert.Contains(t, gen.prompts[0], "Heart Rate: 72 BPM")
	assert.Contains(t, gen.prompts[0], "User question: What is my heart rate?")
}

func TestReply_HealthQueryWithEmptyStoreUsesDefault(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc := newTestService(gen, &fakeRecords{}, nil)

	_, err := svc.Reply(context.Background(), "s1", "what is my ecg")

	require.NoError(t, err)
	assert.Equal(t, prompt.Default("what is my ecg", 150), gen.prompts[0])
}

func TestReply_StoreErrorIsReturned(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc := newTestService(gen, &fakeRecords{err: errors.New("disk")}, nil)

	_, err := svc.Reply(context.Background(), "s1", "what is my ecg")

	assert.Error(t, err)
	assert.Equal(t, 0, gen.calls())
}

func TestReply_PrescriptionQueryAddsSummary(t *testing.T) {
	gen := &fakeGenerator{reply: "Take it with food."}
	rx := &fakePrescriptions{latest: &model.PrescriptionResult{
		ProcessingStatus:    model.PrescriptionStatusSuccess,
		RecognizedMedicines: []model.RecognizedMedicine{{Name: "Paracetamol", Description: "pain reliever", Disease: []string{"fever"}}},
	}}
	svc := NewService(gen, matcher.New(nil), &fakeRecords{}, rx, nil, Config{}, nil, nil)

	resp, err := svc.Reply(context.Background(), "s1", "how do I take my medication")

	require.NoError(t, err)
	assert.Equal(t, model.PromptHealth, resp.Kind)
	assert.True(t, strings.HasPrefix(gen.prompts[0], "Prescription Data:\nLatest Prescription Analysis:"))
	assert.Contains(t, gen.prompts[0], "- Paracetamol: pain reliever (For: fever)")
}

func TestReply_DefaultPromptAndTruncation(t *testing.T) {
	gen := &fakeGenerator{reply: strings.Repeat("word ", 200)}
	svc := newTestService(gen, &fakeRecords{}, nil)

	resp, err := svc.Reply(context.Background(), "s1", "tell me a joke")

	require.NoError(t, err)
	assert.Equal(t, model.PromptDefault, resp.Kind)
	assert.Equal(t, 150, prompt.WordCount(resp.Reply))
	assert.True(t, strings.HasSuffix(resp.Reply, "word..."))
	assert.Contains(t, gen.prompts[0], "under 150 words")
}

func TestReply_GenerationErrorIsReturnedUnchanged(t *testing.T) {
	gen := &fakeGenerator{err: llm.ErrUnavailable}
	svc := newTestService(gen, &fakeRecords{}, nil)

	_, err := svc.Reply(context.Background(), "s1", "hello")

	assert.ErrorIs(t, err, llm.ErrUnavailable)
	assert.Equal(t, 1, gen.calls())
}

func TestReply_EmptyMessage(t *testing.T) {
	svc := newTestService(&fakeGenerator{}, &fakeRecords{}, nil)

	_, err := svc.Reply(context.Background(), "s1", "   ")

	assert.ErrorIs(t, err, ErrEmptyMessage)
}

// blockingGenerator holds the first call until released.
type blockingGenerator struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingGenerator) Complete(_ context.Context, p string) (string, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
		return "stale", nil
	}
	return "fresh", nil
}

func TestReply_SupersededReplyIsDiscarded(t *testing.T) {
	gen := &blockingGenerator{entered: make(chan struct{}), release: make(chan struct{})}
	svc := newTestService(gen, &fakeRecords{}, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Reply(context.Background(), "s1", "first question")
		errCh <- err
	}()
	<-gen.entered

	resp, err := svc.Reply(context.Background(), "s1", "second question")
	require.NoError(t, err)
	assert.Equal(t, "fresh", resp.Reply)

	close(gen.release)
	assert.ErrorIs(t, <-errCh, ErrSuperseded)
}

func TestReply_OtherSessionsAreIndependent(t *testing.T) {
	gen := &blockingGenerator{entered: make(chan struct{}), release: make(chan struct{})}
	svc := newTestService(gen, &fakeRecords{}, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Reply(context.Background(), "s1", "first question")
		errCh <- err
	}()
	<-gen.entered

	_, err := svc.Reply(context.Background(), "s2", "second question")
	require.NoError(t, err)

	close(gen.release)
	assert.NoError(t, <-errCh)
}

func TestSequencer(t *testing.T) {
	seq := NewSequencer(time.Minute)

	a := seq.Next("s")
	assert.True(t, seq.IsLatest("s", a))

	b := seq.Next("s")
	assert.Greater(t, b, a)
	assert.False(t, seq.IsLatest("s", a))
	assert.True(t, seq.IsLatest("s", b))

	assert.True(t, seq.IsLatest("unknown", 42))
}

func TestSequencer_ExpiredSessionDoesNotReuseNumbers(t *testing.T) {
	seq := NewSequencer(20 * time.Millisecond)

	stale := seq.Next("s")
	time.Sleep(50 * time.Millisecond)

	fresh := seq.Next("s")
	assert.NotEqual(t, stale, fresh)
	assert.False(t, seq.IsLatest("s", stale))
	assert.True(t, seq.IsLatest("s", fresh))
}

func TestSequencer_NumbersAreUniqueAcrossSessions(t *testing.T) {
	seq := NewSequencer(time.Minute)

	a := seq.Next("a")
	b := seq.Next("b")
	assert.NotEqual(t, a, b)
	assert.False(t, seq.IsLatest("b", a))
}

func ecgRecords() *fakeRecords {
	return &fakeRecords{records: []model.HealthRecord{{
		FileName:  "ecg_1.png",
		Timestamp: "2025-01-01T10:00:00",
		HeartRate: model.HeartRate{Label: "Heart Rate", Value: "72", Unit: "BPM"},
	}}}
}

func TestReply_HealthQueryWithLooseExerciseKeyword(t *testing.T) {
	tests := []string{
		"What does my ECG severity score mean?",
		"Is my ECG rhythm normal? I suppose so",
		"Was my blood pressure absolutely fine?",
	}
	for _, msg := range tests {
		t.Run(msg, func(t *testing.T) {
			require.True(t, prompt.IsExerciseRequest(msg))
			gen := &fakeGenerator{reply: "Your ECG looks normal."}
			svc := newTestService(gen, ecgRecords(), nil)

			resp, err := svc.Reply(context.Background(), "s1", msg)

			require.NoError(t, err)
			assert.Equal(t, model.PromptHealth, resp.Kind)
			require.Equal(t, 1, gen.calls())
			assert.Contains(t, gen.prompts[0], "Heart Rate: 72 BPM")
			assert.Contains(t, gen.prompts[0], "User question: "+msg)
		})
	}
}

func TestReply_HealthQueryWithExerciseMatchKeepsRecords(t *testing.T) {
	gen := &fakeGenerator{reply: `Keep it light. "jumping_jacks.fbx"`}
	svc := newTestService(gen, ecgRecords(), nil)

	resp, err := svc.Reply(context.Background(), "s1", "what is my heart rate after exercise")

	require.NoError(t, err)
	assert.Equal(t, model.PromptStructured, resp.Kind)
	assert.Equal(t, "jumping_jacks.fbx", resp.Clip)
	require.Len(t, gen.prompts, 1)
	assert.True(t, strings.HasPrefix(gen.prompts[0], "Patient ECG Data:\n"))
	assert.Contains(t, gen.prompts[0], "Heart Rate: 72 BPM")
	assert.Contains(t, gen.prompts[0], `Animation file: "jumping_jacks.fbx"`)
}
