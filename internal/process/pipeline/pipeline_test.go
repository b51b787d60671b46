package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
	"github.com/lueurxax/phrase-relay-bot/internal/core/ocr"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/observability"
	"github.com/lueurxax/phrase-relay-bot/internal/process/flashcard"
	db "github.com/lueurxax/phrase-relay-bot/internal/storage"
)

const (
	testSourceChat = int64(-1001)
	testTargetChat = int64(-2002)
	testMessageID  = 42
	cardText       = "duolingo\nI eat bread.\nComo pan."
)

var (
	errFetch = errors.New("telegram file api down")
	errSend  = errors.New("chat not found")
	errOCR   = errors.New("tesseract crashed")
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFetcher struct {
	data []byte
	err  error
}

func (f fakeFetcher) FetchImage(_ context.Context, _ string, _ int) ([]byte, error) {
	return f.data, f.err
}

type fakeEngine struct {
	text    string
	err     error
	gotLang []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	f.gotLang = in.Languages

	if f.err != nil {
		return ocr.Result{}, f.err
	}

	if _, ok := ctx.Deadline(); !ok {
		return ocr.Result{}, errors.New("expected OCR deadline")
	}

	return ocr.Result{InputID: in.ID, Engine: f.Name(), PlainText: f.text}, nil
}

type sentMessage struct {
	chatID  int64
	replyTo int
	text    string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[int64]bool
}

func (f *fakeSender) SendCard(_ context.Context, chatID int64, replyTo int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOn[chatID] {
		return errSend
	}

	f.sent = append(f.sent, sentMessage{chatID: chatID, replyTo: replyTo, text: text})

	return nil
}

type staticTarget int64

func (s staticTarget) Target() int64 { return int64(s) }

type fakeJournal struct {
	records  []db.CardRecord
	seen     bool
	seenErr  error
	gotSince time.Time
}

func (f *fakeJournal) RecordCard(_ context.Context, rec db.CardRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeJournal) CardSeenSince(_ context.Context, _ string, since time.Time) (bool, error) {
	f.gotSince = since
	return f.seen, f.seenErr
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))

	return buf.Bytes()
}

func defaultOptions() Options {
	return Options{
		ReplyInSource: true,
		OCRTimeout:    time.Minute,
		MaxImageBytes: 1 << 20,
		MaxDimension:  1024,
		Languages:     []string{"eng", "spa"},
	}
}

func newTestPipeline(t *testing.T, engine ocr.Engine, sender Sender, target int64, journal Journal, opts Options) *Pipeline {
	t.Helper()

	logger := zerolog.Nop()

	return New(fakeFetcher{data: pngBytes(t)}, engine, sender, staticTarget(target), journal, opts, &logger)
}

func testJob() Job {
	return Job{ID: "job-1", ChatID: testSourceChat, MessageID: testMessageID, FileID: "file-1", Kind: "photo"}
}

func TestHandle_RelaysToSourceAndTarget(t *testing.T) {
	engine := &fakeEngine{text: cardText}
	sender := &fakeSender{}
	journal := &fakeJournal{}
	p := newTestPipeline(t, engine, sender, testTargetChat, journal, defaultOptions())

	out, err := p.Handle(context.Background(), testJob())
	require.NoError(t, err)

	wantCard := flashcard.Card{English: "I eat bread.", Spanish: "Como pan."}
	wantText := flashcard.Format(wantCard)

	assert.Equal(t, observability.OutcomeRelayed, out.Result)
	assert.Equal(t, wantCard, out.Card)
	assert.Equal(t, 2, out.Delivered)
	assert.Equal(t, []sentMessage{
		{chatID: testSourceChat, replyTo: testMessageID, text: wantText},
		{chatID: testTargetChat, replyTo: 0, text: wantText},
	}, sender.sent)
	assert.Equal(t, []string{"eng", "spa"}, engine.gotLang)

	require.Len(t, journal.records, 1)
	assert.Equal(t, wantCard.Fingerprint(), journal.records[0].Fingerprint)
	assert.Equal(t, "fake", journal.records[0].OCREngine)
	assert.Equal(t, testMessageID, journal.records[0].SourceMessageID)
	assert.Equal(t, 2, journal.records[0].Delivered)
}

func TestHandle_Destinations(t *testing.T) {
	tests := []struct {
		name          string
		replyInSource bool
		target        int64
		want          []int64
	}{
		{name: "source and target", replyInSource: true, target: testTargetChat, want: []int64{testSourceChat, testTargetChat}},
		{name: "target disabled", replyInSource: true, target: 0, want: []int64{testSourceChat}},
		{name: "target is the source chat", replyInSource: true, target: testSourceChat, want: []int64{testSourceChat}},
		{name: "target only", replyInSource: false, target: testTargetChat, want: []int64{testTargetChat}},
		{name: "target only in source chat", replyInSource: false, target: testSourceChat, want: []int64{testSourceChat}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			opts.ReplyInSource = tt.replyInSource

			sender := &fakeSender{}
			p := newTestPipeline(t, &fakeEngine{text: cardText}, sender, tt.target, nil, opts)

			out, err := p.Handle(context.Background(), testJob())
			require.NoError(t, err)
			assert.Equal(t, observability.OutcomeRelayed, out.Result)

			var got []int64
			for _, m := range sender.sent {
				got = append(got, m.chatID)
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandle_NoDestination(t *testing.T) {
	opts := defaultOptions()
	opts.ReplyInSource = false
	opts.DedupWindow = time.Hour

	sender := &fakeSender{}
	journal := &fakeJournal{}
	p := newTestPipeline(t, &fakeEngine{text: cardText}, sender, 0, journal, opts)

	out, err := p.Handle(context.Background(), testJob())
	require.NoError(t, err)

	assert.Equal(t, observability.OutcomeNoDestination, out.Result)
	assert.Equal(t, flashcard.Card{English: "I eat bread.", Spanish: "Como pan."}, out.Card)
	assert.Zero(t, out.Delivered)
	assert.Empty(t, sender.sent)
	assert.Empty(t, journal.records, "an undelivered card must not reach the journal")
	assert.True(t, journal.gotSince.IsZero(), "dedup lookup is skipped without a destination")
}

func TestHandle_NonCardOutcomes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "no watermark", text: "I eat bread.\nComo pan.", want: observability.OutcomeNoWatermark},
		{name: "only watermark", text: "duolingo", want: observability.OutcomeEmpty},
		{name: "single line", text: "duolingo good morning", want: observability.OutcomeNoPair},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			p := newTestPipeline(t, &fakeEngine{text: tt.text}, sender, testTargetChat, nil, defaultOptions())

			out, err := p.Handle(context.Background(), testJob())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Result)
			assert.Empty(t, sender.sent)
		})
	}
}

func TestHandle_PartialDeliveryFailure(t *testing.T) {
	sender := &fakeSender{failOn: map[int64]bool{testTargetChat: true}}
	journal := &fakeJournal{}
	p := newTestPipeline(t, &fakeEngine{text: cardText}, sender, testTargetChat, journal, defaultOptions())

	out, err := p.Handle(context.Background(), testJob())
	require.NoError(t, err)

	assert.Equal(t, 1, out.Delivered)
	assert.Equal(t, 1, out.Failed)
	assert.Len(t, sender.sent, 1)
	assert.Len(t, journal.records, 1)
}

func TestHandle_AllDeliveriesFail(t *testing.T) {
	sender := &fakeSender{failOn: map[int64]bool{testSourceChat: true, testTargetChat: true}}
	journal := &fakeJournal{}
	p := newTestPipeline(t, &fakeEngine{text: cardText}, sender, testTargetChat, journal, defaultOptions())

	out, err := p.Handle(context.Background(), testJob())
	require.ErrorIs(t, err, errAllDeliveriesFailed)

	assert.Equal(t, observability.OutcomeError, out.Result)
	assert.Equal(t, 2, out.Failed)
	assert.Empty(t, journal.records)
}

func TestHandle_Errors(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fetch", func(t *testing.T) {
		p := New(fakeFetcher{err: errFetch}, &fakeEngine{}, &fakeSender{}, staticTarget(0), nil, defaultOptions(), &logger)

		out, err := p.Handle(context.Background(), testJob())
		require.ErrorIs(t, err, errFetch)
		assert.Equal(t, observability.OutcomeError, out.Result)
	})

	t.Run("undecodable image", func(t *testing.T) {
		p := New(fakeFetcher{data: []byte("html error page")}, &fakeEngine{}, &fakeSender{}, staticTarget(0), nil, defaultOptions(), &logger)

		_, err := p.Handle(context.Background(), testJob())
		require.ErrorIs(t, err, apperrors.ErrUnsupportedImage)
	})

	t.Run("image over pixel budget", func(t *testing.T) {
		opts := defaultOptions()
		opts.MaxPixels = 63

		engine := &fakeEngine{text: cardText}
		p := newTestPipeline(t, engine, &fakeSender{}, 0, nil, opts)

		_, err := p.Handle(context.Background(), testJob())
		require.ErrorIs(t, err, apperrors.ErrImageTooLarge)
		assert.Nil(t, engine.gotLang, "engine must not run on a rejected image")
	})

	t.Run("ocr", func(t *testing.T) {
		p := newTestPipeline(t, &fakeEngine{err: errOCR}, &fakeSender{}, 0, nil, defaultOptions())

		_, err := p.Handle(context.Background(), testJob())
		require.ErrorIs(t, err, errOCR)
		assert.Contains(t, err.Error(), "recognize with fake")
	})
}

func TestHandle_Dedup(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	opts := defaultOptions()
	opts.DedupWindow = 24 * time.Hour

	t.Run("duplicate skipped", func(t *testing.T) {
		sender := &fakeSender{}
		journal := &fakeJournal{seen: true}
		p := newTestPipeline(t, &fakeEngine{text: cardText}, sender, testTargetChat, journal, opts)
		p.now = func() time.Time { return now }

		out, err := p.Handle(context.Background(), testJob())
		require.NoError(t, err)

		assert.Equal(t, observability.OutcomeDuplicate, out.Result)
		assert.Empty(t, sender.sent)
		assert.Empty(t, journal.records)
		assert.Equal(t, now.Add(-24*time.Hour), journal.gotSince)
	})

	t.Run("lookup failure relays anyway", func(t *testing.T) {
		sender := &fakeSender{}
		journal := &fakeJournal{seenErr: errors.New("db down")}
		p := newTestPipeline(t, &fakeEngine{text: cardText}, sender, testTargetChat, journal, opts)

		out, err := p.Handle(context.Background(), testJob())
		require.NoError(t, err)
		assert.Equal(t, observability.OutcomeRelayed, out.Result)
		assert.Len(t, sender.sent, 2)
	})

	t.Run("disabled window never looks up", func(t *testing.T) {
		journal := &fakeJournal{seen: true}
		p := newTestPipeline(t, &fakeEngine{text: cardText}, &fakeSender{}, testTargetChat, journal, defaultOptions())

		out, err := p.Handle(context.Background(), testJob())
		require.NoError(t, err)
		assert.Equal(t, observability.OutcomeRelayed, out.Result)
		assert.True(t, journal.gotSince.IsZero())
	})
}
