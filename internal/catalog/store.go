package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bhasha/internal/config"
	"bhasha/internal/language"
	"bhasha/internal/services"
)

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the catalog database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Add validates and appends a contribution, assigning the server-side id.
// Status defaults to published. Publishing also bumps the day's
// data-contribution bucket in the same transaction so analytics never
// observe one without the other.
func (s *Store) Add(ctx context.Context, rec *Contribution) (int64, error) {
	if rec == nil {
		return 0, services.Wrap(services.ErrInvalidInput, "catalog", "add", "record is nil", nil)
	}
	if _, ok := typeSet[rec.Type]; !ok {
		return 0, services.Wrap(services.ErrInvalidInput, "catalog", "add", fmt.Sprintf("unknown contribution type %q", rec.Type), nil)
	}
	code := language.Normalize(rec.LanguageCode)
	if code == "" {
		return 0, services.Wrap(services.ErrInvalidInput, "catalog", "add", fmt.Sprintf("unrecognized language %q", rec.LanguageCode), nil)
	}
	if rec.ContributorID <= 0 {
		return 0, services.Wrap(services.ErrInvalidInput, "catalog", "add", "contributor id is required", nil)
	}
	status := rec.Status
	if status == "" {
		status = StatusPublished
	}
	if _, ok := statusSet[status]; !ok {
		return 0, services.Wrap(services.ErrInvalidInput, "catalog", "add", fmt.Sprintf("unknown status %q", status), nil)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tagsJSON, err := json.Marshal(normalizeTags(rec.Tags))
	if err != nil {
		return 0, services.Wrap(services.ErrInvalidInput, "catalog", "add", "encode tags", err)
	}

	var id int64
	err = s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO contributions (
                type, title, body, language_code, region, category, tags,
                content_ref, size, content_type, contributor_id, likes_count,
                status, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(rec.Type),
			strings.TrimSpace(rec.Title),
			rec.Body,
			code,
			nullableString(rec.Region),
			nullableString(rec.Category),
			string(tagsJSON),
			nullableString(rec.ContentRef),
			rec.Size,
			nullableString(rec.ContentType),
			rec.ContributorID,
			rec.LikesCount,
			string(status),
			createdAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert contribution: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		if status == StatusPublished {
			if err := bumpBucketTx(ctx, tx, createdAt, code, BucketDelta{Contributions: 1}); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, services.Wrap(services.ErrPersistenceFailure, "catalog", "add", "", err)
	}

	rec.ID = id
	rec.Status = status
	rec.LanguageCode = code
	rec.CreatedAt = createdAt
	return id, nil
}

// GetByID fetches a contribution by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Contribution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id)
	rec, err := scanContribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "get", "", err)
	}
	return rec, nil
}

// Query returns published contributions matching the conjunction of every
// supplied filter, ordered by engagement (likes) descending with creation
// time as the tiebreaker.
func (s *Store) Query(ctx context.Context, filters Filters) ([]*Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE status = ?`
	args := []any{string(StatusPublished)}

	if lang := language.Normalize(filters.Language); lang != "" {
		query += ` AND language_code = ?`
		args = append(args, lang)
	} else if strings.TrimSpace(filters.Language) != "" {
		// An unrecognizable language filter can match nothing.
		return nil, nil
	}
	if category := strings.TrimSpace(filters.Category); category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if region := strings.TrimSpace(filters.Region); region != "" {
		query += ` AND region = ?`
		args = append(args, region)
	}
	if search := strings.ToLower(strings.TrimSpace(filters.SearchText)); search != "" {
		query += ` AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(body) LIKE ? ESCAPE '\'
            OR EXISTS (SELECT 1 FROM json_each(contributions.tags) WHERE LOWER(json_each.value) LIKE ? ESCAPE '\'))`
		pattern := "%" + escapeLike(search) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query += ` ORDER BY likes_count DESC, created_at DESC`
	if filters.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filters.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "query", "", err)
	}
	defer rows.Close()

	var records []*Contribution
	for rows.Next() {
		rec, err := scanContribution(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "query scan", "", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "query rows", "", err)
	}
	return records, nil
}

// Stats returns a count of contributions grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM contributions GROUP BY status`)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "stats", "", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "stats scan", "", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const contributionColumns = "id, type, title, body, language_code, region, category, tags, content_ref, size, content_type, contributor_id, likes_count, status, created_at"

func scanContribution(scanner interface{ Scan(dest ...any) error }) (*Contribution, error) {
	var (
		id            int64
		typeStr       string
		title         string
		body          string
		languageCode  string
		region        sql.NullString
		category      sql.NullString
		tagsJSON      string
		contentRef    sql.NullString
		size          int64
		contentType   sql.NullString
		contributorID int64
		likesCount    int64
		statusStr     string
		createdRaw    string
	)
	if err := scanner.Scan(
		&id, &typeStr, &title, &body, &languageCode, &region, &category,
		&tagsJSON, &contentRef, &size, &contentType, &contributorID,
		&likesCount, &statusStr, &createdRaw,
	); err != nil {
		return nil, err
	}

	rec := &Contribution{
		ID:            id,
		Type:          ContributionType(typeStr),
		Title:         title,
		Body:          body,
		LanguageCode:  languageCode,
		Region:        region.String,
		Category:      category.String,
		ContentRef:    contentRef.String,
		Size:          size,
		ContentType:   contentType.String,
		ContributorID: contributorID,
		LikesCount:    likesCount,
		Status:        Status(statusStr),
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}

func (s *Store) withRetry(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > busyRetryMaxBackoff {
			delay = busyRetryMaxBackoff
		}
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func normalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

// escapeLike neutralizes LIKE wildcards in a search term. The backslash
// must be escaped first and the predicates carry ESCAPE '\' so the
// escapes are honored.
func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
