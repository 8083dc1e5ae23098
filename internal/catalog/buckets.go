package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bhasha/internal/language"
	"bhasha/internal/services"
)

const bucketDateLayout = "2006-01-02"

// BumpBucket applies a delta to the usage bucket for the given day and
// language. The row is created on first touch. An empty language code
// targets the site-wide bucket.
func (s *Store) BumpBucket(ctx context.Context, day time.Time, languageCode string, delta BucketDelta) error {
	err := s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := bumpBucketTx(ctx, tx, day, languageCode, delta); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return services.Wrap(services.ErrPersistenceFailure, "catalog", "bump bucket", "", err)
	}
	return nil
}

func bumpBucketTx(ctx context.Context, tx *sql.Tx, day time.Time, languageCode string, delta BucketDelta) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO usage_analytics (date, language_code, conversations_count, new_users_count, data_contributions_count)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(date, language_code) DO UPDATE SET
             conversations_count = conversations_count + excluded.conversations_count,
             new_users_count = new_users_count + excluded.new_users_count,
             data_contributions_count = data_contributions_count + excluded.data_contributions_count`,
		day.UTC().Format(bucketDateLayout),
		languageCode,
		delta.Conversations,
		delta.NewUsers,
		delta.Contributions,
	)
	if err != nil {
		return fmt.Errorf("upsert usage bucket: %w", err)
	}
	return nil
}

// BucketsBetween returns usage buckets with from <= date < to, oldest first.
func (s *Store) BucketsBetween(ctx context.Context, from, to time.Time) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, language_code, conversations_count, new_users_count, data_contributions_count
         FROM usage_analytics
         WHERE date >= ? AND date < ?
         ORDER BY date ASC, language_code ASC`,
		from.UTC().Format(bucketDateLayout),
		to.UTC().Format(bucketDateLayout),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "buckets between", "", err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		var dateRaw string
		var bucket Bucket
		if err := rows.Scan(&dateRaw, &bucket.LanguageCode, &bucket.ConversationsCount, &bucket.NewUsersCount, &bucket.ContributionsCount); err != nil {
			return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "buckets scan", "", err)
		}
		date, err := time.ParseInLocation(bucketDateLayout, dateRaw, time.UTC)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "buckets scan", "malformed bucket date "+dateRaw, err)
		}
		bucket.Date = date
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, "catalog", "buckets rows", "", err)
	}
	return buckets, nil
}

// LogConversation records an assistant exchange and bumps the day's
// conversation bucket in the same transaction.
func (s *Store) LogConversation(ctx context.Context, log *ConversationLog) (int64, error) {
	if log == nil {
		return 0, services.Wrap(services.ErrInvalidInput, "catalog", "log conversation", "log is nil", nil)
	}
	code := language.Normalize(log.LanguageCode)
	if code == "" {
		return 0, services.Wrap(services.ErrInvalidInput, "catalog", "log conversation", fmt.Sprintf("unrecognized language %q", log.LanguageCode), nil)
	}
	startedAt := log.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	lastActivity := log.LastActivity
	if lastActivity.IsZero() {
		lastActivity = startedAt
	}

	var id int64
	err := s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (language_code, message_count, started_at, last_activity)
             VALUES (?, ?, ?, ?)`,
			code,
			log.MessageCount,
			startedAt.Format(time.RFC3339Nano),
			lastActivity.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if err := bumpBucketTx(ctx, tx, startedAt, code, BucketDelta{Conversations: 1}); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, services.Wrap(services.ErrPersistenceFailure, "catalog", "log conversation", "", err)
	}

	log.ID = id
	log.LanguageCode = code
	log.StartedAt = startedAt
	log.LastActivity = lastActivity
	return id, nil
}

// TouchConversation updates an existing conversation's message count and
// last-activity timestamp.
func (s *Store) TouchConversation(ctx context.Context, id int64, messageCount int, lastActivity time.Time) error {
	if lastActivity.IsZero() {
		lastActivity = time.Now().UTC()
	}
	var affected int64
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE conversations SET message_count = ?, last_activity = ? WHERE id = ?`,
			messageCount, lastActivity.Format(time.RFC3339Nano), id,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return services.Wrap(services.ErrPersistenceFailure, "catalog", "touch conversation", "", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "catalog", "touch conversation", fmt.Sprintf("conversation %d", id), nil)
	}
	return nil
}
