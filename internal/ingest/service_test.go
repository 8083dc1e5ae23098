package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bhasha/internal/capture"
	"bhasha/internal/catalog"
	"bhasha/internal/config"
	"bhasha/internal/ingest"
	"bhasha/internal/services"
	"bhasha/internal/services/blobstore"
	"bhasha/internal/testsupport"
	"bhasha/internal/upload"
)

type fixture struct {
	cfg      *config.Config
	store    *catalog.Store
	blobs    *blobstore.FSStore
	service  *ingest.Service
	recorder *capture.Recorder
	device   *capture.StubDevice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Capture.FragmentPeriodMS = 5
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.NewFSStore(cfg.Paths.MediaDir)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	coordinator := upload.NewCoordinator(blobs, cfg, nil)
	device := capture.NewStubDevice("mic0")
	return &fixture{
		cfg:      cfg,
		store:    store,
		blobs:    blobs,
		service:  ingest.New(coordinator, store, nil),
		recorder: capture.NewRecorder(device, cfg, nil),
		device:   device,
	}
}

func (f *fixture) recordedSession(t *testing.T, fragments ...string) *capture.Session {
	t.Helper()
	session, err := f.recorder.Start(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, fragment := range fragments {
		if err := session.AppendFragment([]byte(fragment)); err != nil {
			t.Fatalf("AppendFragment: %v", err)
		}
	}
	session.Stop()
	return session
}

func TestPublishRecording(t *testing.T) {
	f := newFixture(t)
	session := f.recordedSession(t, "frag-1", "frag-2")

	rec, err := f.service.PublishRecording(context.Background(), session, ingest.Meta{
		Title:         "Lullaby",
		LanguageCode:  "hi",
		Tags:          []string{"song"},
		ContributorID: 3,
	})
	if err != nil {
		t.Fatalf("PublishRecording: %v", err)
	}
	if rec.ID <= 0 {
		t.Fatalf("expected cataloged id, got %d", rec.ID)
	}
	if rec.Type != catalog.TypeAudio {
		t.Fatalf("expected audio type, got %v", rec.Type)
	}
	if !strings.HasPrefix(rec.ContentRef, "file://") {
		t.Fatalf("expected content ref URL, got %q", rec.ContentRef)
	}
	if rec.Size != int64(len("frag-1frag-2")) {
		t.Fatalf("unexpected size %d", rec.Size)
	}
	if session.State() != capture.StateIdle {
		t.Fatalf("expected session retired, got %v", session.State())
	}

	objects, err := f.blobs.List(context.Background(), "audio/hi/", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("expected one stored object, got %d", len(objects))
	}
}

func TestPublishRecordingBadLanguageLeavesNoRowOrBlob(t *testing.T) {
	f := newFixture(t)
	session := f.recordedSession(t, "frag")

	_, err := f.service.PublishRecording(context.Background(), session, ingest.Meta{
		LanguageCode:  "not-a-language-zz",
		ContributorID: 3,
	})
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	objects, err := f.blobs.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 0 {
		t.Fatalf("expected no blobs, got %d", len(objects))
	}
	results, err := f.store.Query(context.Background(), catalog.Filters{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no catalog rows, got %d", len(results))
	}
}

func TestPublishFile(t *testing.T) {
	f := newFixture(t)
	payload := "festival photo bytes"

	rec, err := f.service.PublishFile(context.Background(), strings.NewReader(payload), int64(len(payload)), "image/jpeg", ingest.Meta{
		Type:          catalog.TypeImage,
		Title:         "Pongal kolam",
		LanguageCode:  "ta",
		ContentID:     "87",
		Filename:      "kolam.jpg",
		ContributorID: 4,
	})
	if err != nil {
		t.Fatalf("PublishFile: %v", err)
	}
	if rec.ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type %q", rec.ContentType)
	}

	objects, err := f.blobs.List(context.Background(), "cultural/ta/87/", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("expected object under cultural/ta/87/, got %d", len(objects))
	}
}

func TestPublishFileRejectedTypeNeverCataloged(t *testing.T) {
	f := newFixture(t)
	payload := "binary"

	_, err := f.service.PublishFile(context.Background(), strings.NewReader(payload), int64(len(payload)), "application/x-msdownload", ingest.Meta{
		Type:          catalog.TypeDocument,
		LanguageCode:  "hi",
		Filename:      "tool.exe",
		ContributorID: 2,
	})
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	results, err := f.store.Query(context.Background(), catalog.Filters{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty catalog, got %d rows", len(results))
	}
}

func TestPublishText(t *testing.T) {
	f := newFixture(t)

	rec, err := f.service.PublishText(context.Background(), ingest.Meta{
		Title:         "Proverb",
		Body:          "A stitch in time saves nine",
		LanguageCode:  "bn",
		Tags:          []string{"proverb"},
		ContributorID: 5,
	})
	if err != nil {
		t.Fatalf("PublishText: %v", err)
	}
	if rec.Type != catalog.TypeText {
		t.Fatalf("expected text type, got %v", rec.Type)
	}
	if rec.ContentRef != "" {
		t.Fatalf("expected no content ref, got %q", rec.ContentRef)
	}

	results, err := f.store.Query(context.Background(), catalog.Filters{Language: "bn"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one row, got %d", len(results))
	}
}

func TestPublishRecordingTwiceFails(t *testing.T) {
	f := newFixture(t)
	session := f.recordedSession(t, "frag")

	meta := ingest.Meta{LanguageCode: "hi", ContributorID: 1}
	if _, err := f.service.PublishRecording(context.Background(), session, meta); err != nil {
		t.Fatalf("PublishRecording: %v", err)
	}
	if _, err := f.service.PublishRecording(context.Background(), session, meta); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput on reuse, got %v", err)
	}
}
