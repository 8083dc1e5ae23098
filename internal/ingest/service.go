package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"bhasha/internal/capture"
	"bhasha/internal/catalog"
	"bhasha/internal/language"
	"bhasha/internal/logging"
	"bhasha/internal/services"
	"bhasha/internal/upload"
)

// Meta carries the contributor-supplied description of an artifact.
type Meta struct {
	Type          catalog.ContributionType
	Title         string
	Body          string
	LanguageCode  string
	Region        string
	Category      string
	Tags          []string
	ContentID     string
	Filename      string
	ContributorID int64
}

// Service wires the capture, upload, and catalog layers into one pipeline.
type Service struct {
	coordinator *upload.Coordinator
	store       *catalog.Store
	logger      *slog.Logger
}

// New builds the ingest pipeline service.
func New(coordinator *upload.Coordinator, store *catalog.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		coordinator: coordinator,
		store:       store,
		logger:      logging.WithComponent(logger, "ingest"),
	}
}

// PublishRecording finalizes the session's buffer, uploads the artifact,
// and catalogs the contribution. The session is completed on success and
// on catalog failure alike; an orphaned blob after a durable put is logged
// for the reconciliation sweep rather than deleted.
func (s *Service) PublishRecording(ctx context.Context, session *capture.Session, meta Meta) (*catalog.Contribution, error) {
	artifact, err := session.Finalize()
	if err != nil {
		return nil, err
	}
	if meta.Type == "" {
		meta.Type = catalog.TypeAudio
	}
	if meta.Filename == "" {
		meta.Filename = "recording.webm"
	}
	if meta.Category == "" {
		meta.Category = "audio"
	}

	rec, err := s.publish(ctx, upload.Artifact{
		Name:        meta.Filename,
		ContentType: artifact.ContentType,
		Size:        int64(len(artifact.Data)),
		Reader:      bytes.NewReader(artifact.Data),
	}, meta)
	session.Complete()
	if err != nil {
		return nil, err
	}

	s.logger.Info("recording published",
		logging.String(logging.FieldSessionID, session.ID()),
		logging.Int64(logging.FieldContributionID, rec.ID),
		logging.Int("duration_seconds", artifact.DurationSeconds))
	return rec, nil
}

// PublishFile uploads a direct file contribution (image, document, audio
// file) and catalogs it.
func (s *Service) PublishFile(ctx context.Context, reader io.Reader, size int64, contentType string, meta Meta) (*catalog.Contribution, error) {
	if meta.Category == "" {
		meta.Category = categoryForType(meta.Type)
	}
	rec, err := s.publish(ctx, upload.Artifact{
		Name:        meta.Filename,
		ContentType: contentType,
		Size:        size,
		Reader:      reader,
	}, meta)
	if err != nil {
		return nil, err
	}
	s.logger.Info("file published",
		logging.Int64(logging.FieldContributionID, rec.ID),
		logging.String(logging.FieldPathname, rec.ContentRef))
	return rec, nil
}

// PublishText catalogs a text-only contribution with no stored artifact.
func (s *Service) PublishText(ctx context.Context, meta Meta) (*catalog.Contribution, error) {
	rec := recordFromMeta(meta)
	rec.Type = catalog.TypeText
	if _, err := s.store.Add(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) publish(ctx context.Context, artifact upload.Artifact, meta Meta) (*catalog.Contribution, error) {
	code := language.Normalize(meta.LanguageCode)
	if code == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "ingest", "publish",
			"unrecognized language "+meta.LanguageCode, nil)
	}
	if err := s.coordinator.Validate(artifact); err != nil {
		return nil, err
	}

	pathname := upload.DerivePath(meta.Category, code, meta.ContentID, artifact.Name)
	info, task, err := s.coordinator.Upload(ctx, artifact, pathname)
	if err != nil {
		if task != nil {
			s.logger.Warn("transfer did not complete",
				logging.String(logging.FieldTaskID, task.ID()),
				logging.String(logging.FieldPathname, pathname),
				logging.String("status", string(task.Status())))
		}
		return nil, err
	}

	rec := recordFromMeta(meta)
	rec.LanguageCode = code
	rec.ContentRef = info.URL
	rec.Size = info.Size
	rec.ContentType = info.ContentType
	if _, err := s.store.Add(ctx, rec); err != nil {
		if errors.Is(err, services.ErrPersistenceFailure) {
			// The blob is durable but uncataloged. Record it so the
			// out-of-band sweep can reconcile; deleting here could race a
			// concurrent retry.
			s.logger.Error("orphaned blob after catalog failure",
				logging.String(logging.FieldPathname, info.Pathname),
				logging.String("url", info.URL),
				logging.Error(err))
		}
		return nil, err
	}
	return rec, nil
}

func recordFromMeta(meta Meta) *catalog.Contribution {
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = strings.TrimSpace(meta.Filename)
	}
	return &catalog.Contribution{
		Type:          meta.Type,
		Title:         title,
		Body:          meta.Body,
		LanguageCode:  meta.LanguageCode,
		Region:        meta.Region,
		Category:      meta.Category,
		Tags:          meta.Tags,
		ContributorID: meta.ContributorID,
	}
}

func categoryForType(contributionType catalog.ContributionType) string {
	switch contributionType {
	case catalog.TypeAudio:
		return "audio"
	case catalog.TypeImage:
		return "cultural"
	case catalog.TypeDocument:
		return "documents"
	default:
		return ""
	}
}
