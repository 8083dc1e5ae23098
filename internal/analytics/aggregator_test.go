package analytics_test

import (
	"context"
	"testing"
	"time"

	"bhasha/internal/analytics"
	"bhasha/internal/catalog"
	"bhasha/internal/testsupport"
)

func newAggregator(t *testing.T) (*analytics.Aggregator, *catalog.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return analytics.New(store, cfg, nil), store
}

func bump(t *testing.T, store *catalog.Store, day time.Time, lang string, delta catalog.BucketDelta) {
	t.Helper()
	if err := store.BumpBucket(context.Background(), day, lang, delta); err != nil {
		t.Fatalf("BumpBucket: %v", err)
	}
}

func TestSummaryCountsWindowOnly(t *testing.T) {
	agg, store := newAggregator(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	bump(t, store, now, "hi", catalog.BucketDelta{Conversations: 3, Contributions: 2})
	bump(t, store, now.AddDate(0, 0, -10), "bn", catalog.BucketDelta{NewUsers: 5, Contributions: 1})
	// Outside the 30-day window entirely.
	bump(t, store, now.AddDate(0, 0, -70), "ta", catalog.BucketDelta{Conversations: 9})

	summary, err := agg.Summary(ctx, now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Conversations != 3 || summary.NewUsers != 5 || summary.Contributions != 3 {
		t.Fatalf("unexpected totals %+v", summary)
	}
	if summary.LanguagesSupported != 2 {
		t.Fatalf("expected 2 active languages, got %d", summary.LanguagesSupported)
	}
}

func TestSummaryGrowthWithoutBaseline(t *testing.T) {
	agg, store := newAggregator(t)
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	bump(t, store, now, "hi", catalog.BucketDelta{Conversations: 4})

	summary, err := agg.Summary(context.Background(), now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Growth.HasBaseline {
		t.Fatal("expected HasBaseline=false with an empty previous window")
	}
	if summary.Growth.ConversationsPct != 0 {
		t.Fatalf("expected zero growth pct, got %v", summary.Growth.ConversationsPct)
	}
}

func TestSummaryGrowthAgainstPreviousWindow(t *testing.T) {
	agg, store := newAggregator(t)
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	// Previous window: days -59..-30 relative to the window end.
	bump(t, store, now.AddDate(0, 0, -35), "hi", catalog.BucketDelta{Conversations: 2, Contributions: 4})
	// Current window.
	bump(t, store, now.AddDate(0, 0, -5), "hi", catalog.BucketDelta{Conversations: 3, Contributions: 2})

	summary, err := agg.Summary(context.Background(), now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !summary.Growth.HasBaseline {
		t.Fatal("expected HasBaseline=true")
	}
	if summary.Growth.ConversationsPct != 50 {
		t.Fatalf("expected +50%% conversations, got %v", summary.Growth.ConversationsPct)
	}
	if summary.Growth.ContributionsPct != -50 {
		t.Fatalf("expected -50%% contributions, got %v", summary.Growth.ContributionsPct)
	}
}

func TestMonthlyTrendZeroFillsMissingMonths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Analytics.TrendMonths = 3
	store := testsupport.MustOpenStore(t, cfg)
	agg := analytics.New(store, cfg, nil)
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	bump(t, store, time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC), "hi", catalog.BucketDelta{Contributions: 2})
	bump(t, store, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), "bn", catalog.BucketDelta{Contributions: 1, Conversations: 7})

	points, err := agg.MonthlyTrend(context.Background(), now)
	if err != nil {
		t.Fatalf("MonthlyTrend: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 months, got %d", len(points))
	}
	if !points[0].Month.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first month %v", points[0].Month)
	}
	if points[0].Contributions != 2 {
		t.Fatalf("june: expected 2 contributions, got %d", points[0].Contributions)
	}
	if points[1].Contributions != 0 || points[1].Conversations != 0 {
		t.Fatalf("july: expected zero totals, got %+v", points[1])
	}
	if points[2].Conversations != 7 || points[2].Contributions != 1 {
		t.Fatalf("august: unexpected totals %+v", points[2])
	}
}

func TestLanguagePerformanceOrdering(t *testing.T) {
	agg, store := newAggregator(t)
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	bump(t, store, now, "hi", catalog.BucketDelta{Contributions: 1})
	bump(t, store, now, "ta", catalog.BucketDelta{Contributions: 5, Conversations: 2})
	bump(t, store, now, "bn", catalog.BucketDelta{Contributions: 5})
	// Site-wide bucket stays out of the per-language series.
	bump(t, store, now, "", catalog.BucketDelta{NewUsers: 10})

	series, err := agg.LanguagePerformance(context.Background(), now)
	if err != nil {
		t.Fatalf("LanguagePerformance: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("expected 3 languages, got %d", len(series))
	}
	if series[0].LanguageCode != "bn" || series[1].LanguageCode != "ta" || series[2].LanguageCode != "hi" {
		t.Fatalf("unexpected order %+v", series)
	}
	if series[1].Conversations != 2 {
		t.Fatalf("expected tamil conversations carried, got %+v", series[1])
	}
	if series[0].DisplayName == "" {
		t.Fatal("expected display name populated")
	}
}
