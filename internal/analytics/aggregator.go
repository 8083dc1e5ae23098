package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"bhasha/internal/catalog"
	"bhasha/internal/config"
	"bhasha/internal/language"
	"bhasha/internal/logging"
)

// Aggregator computes usage rollups from the catalog's daily buckets. It
// only reads; buckets are written by the catalog store as activity happens.
type Aggregator struct {
	store       *catalog.Store
	windowDays  int
	trendMonths int
	logger      *slog.Logger
}

// Summary is the trailing-window rollup of the usage counters.
type Summary struct {
	WindowDays         int        `json:"windowDays"`
	Conversations      int64      `json:"conversations"`
	NewUsers           int64      `json:"newUsers"`
	Contributions      int64      `json:"contributions"`
	LanguagesSupported int        `json:"languagesSupported"`
	Growth             GrowthRate `json:"growth"`
}

// GrowthRate compares the current window against the one before it.
// HasBaseline is false when the previous window saw no activity at all;
// the percentage fields are zero in that case rather than infinite.
type GrowthRate struct {
	HasBaseline      bool    `json:"hasBaseline"`
	ConversationsPct float64 `json:"conversationsPct"`
	NewUsersPct      float64 `json:"newUsersPct"`
	ContributionsPct float64 `json:"contributionsPct"`
}

// MonthPoint is one calendar month of the trend series.
type MonthPoint struct {
	Month         time.Time `json:"month"`
	Conversations int64     `json:"conversations"`
	NewUsers      int64     `json:"newUsers"`
	Contributions int64     `json:"contributions"`
}

// LanguageStats is the per-language rollup over the summary window.
type LanguageStats struct {
	LanguageCode  string `json:"languageCode"`
	DisplayName   string `json:"displayName"`
	Conversations int64  `json:"conversations"`
	NewUsers      int64  `json:"newUsers"`
	Contributions int64  `json:"contributions"`
}

// New builds an aggregator over the given store using the configured
// summary window and trend span.
func New(store *catalog.Store, cfg *config.Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aggregator{
		store:       store,
		windowDays:  cfg.Analytics.SummaryWindowDays,
		trendMonths: cfg.Analytics.TrendMonths,
		logger:      logging.WithComponent(logger, "analytics"),
	}
}

// Summary sums the trailing window ending at now and reports growth against
// the window immediately before it.
func (a *Aggregator) Summary(ctx context.Context, now time.Time) (Summary, error) {
	windowEnd := dayOf(now).AddDate(0, 0, 1)
	windowStart := windowEnd.AddDate(0, 0, -a.windowDays)
	previousStart := windowStart.AddDate(0, 0, -a.windowDays)

	buckets, err := a.store.BucketsBetween(ctx, previousStart, windowEnd)
	if err != nil {
		return Summary{}, err
	}

	var current, previous totals
	activeLanguages := make(map[string]struct{})
	for _, bucket := range buckets {
		if bucket.Date.Before(windowStart) {
			previous.add(bucket)
			continue
		}
		current.add(bucket)
		if bucket.LanguageCode != "" && bucketActive(bucket) {
			activeLanguages[bucket.LanguageCode] = struct{}{}
		}
	}

	summary := Summary{
		WindowDays:         a.windowDays,
		Conversations:      current.conversations,
		NewUsers:           current.newUsers,
		Contributions:      current.contributions,
		LanguagesSupported: len(activeLanguages),
	}
	if previous.any() {
		summary.Growth = GrowthRate{
			HasBaseline:      true,
			ConversationsPct: percentChange(current.conversations, previous.conversations),
			NewUsersPct:      percentChange(current.newUsers, previous.newUsers),
			ContributionsPct: percentChange(current.contributions, previous.contributions),
		}
	}

	a.logger.DebugContext(ctx, "computed summary",
		logging.Int64("conversations", summary.Conversations),
		logging.Int64("contributions", summary.Contributions),
		logging.Int("languages", summary.LanguagesSupported))
	return summary, nil
}

// MonthlyTrend groups the trailing months into calendar-month buckets,
// oldest first. Months without activity report zero totals so a partial
// current month still appears with its real numbers.
func (a *Aggregator) MonthlyTrend(ctx context.Context, now time.Time) ([]MonthPoint, error) {
	firstMonth := monthOf(now).AddDate(0, -(a.trendMonths - 1), 0)
	windowEnd := dayOf(now).AddDate(0, 0, 1)

	buckets, err := a.store.BucketsBetween(ctx, firstMonth, windowEnd)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[time.Time]*MonthPoint, a.trendMonths)
	points := make([]MonthPoint, 0, a.trendMonths)
	for i := 0; i < a.trendMonths; i++ {
		month := firstMonth.AddDate(0, i, 0)
		points = append(points, MonthPoint{Month: month})
		byMonth[month] = &points[len(points)-1]
	}
	for _, bucket := range buckets {
		point, ok := byMonth[monthOf(bucket.Date)]
		if !ok {
			continue
		}
		point.Conversations += bucket.ConversationsCount
		point.NewUsers += bucket.NewUsersCount
		point.Contributions += bucket.ContributionsCount
	}
	return points, nil
}

// LanguagePerformance rolls up the summary window per language, most
// contributions first. The site-wide bucket (empty language code) is not
// part of the series.
func (a *Aggregator) LanguagePerformance(ctx context.Context, now time.Time) ([]LanguageStats, error) {
	windowEnd := dayOf(now).AddDate(0, 0, 1)
	windowStart := windowEnd.AddDate(0, 0, -a.windowDays)

	buckets, err := a.store.BucketsBetween(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	byLanguage := make(map[string]*LanguageStats)
	for _, bucket := range buckets {
		if bucket.LanguageCode == "" {
			continue
		}
		stats, ok := byLanguage[bucket.LanguageCode]
		if !ok {
			stats = &LanguageStats{
				LanguageCode: bucket.LanguageCode,
				DisplayName:  language.DisplayName(bucket.LanguageCode),
			}
			byLanguage[bucket.LanguageCode] = stats
		}
		stats.Conversations += bucket.ConversationsCount
		stats.NewUsers += bucket.NewUsersCount
		stats.Contributions += bucket.ContributionsCount
	}

	series := make([]LanguageStats, 0, len(byLanguage))
	for _, stats := range byLanguage {
		series = append(series, *stats)
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Contributions != series[j].Contributions {
			return series[i].Contributions > series[j].Contributions
		}
		return series[i].LanguageCode < series[j].LanguageCode
	})
	return series, nil
}

type totals struct {
	conversations int64
	newUsers      int64
	contributions int64
}

func (t *totals) add(bucket catalog.Bucket) {
	t.conversations += bucket.ConversationsCount
	t.newUsers += bucket.NewUsersCount
	t.contributions += bucket.ContributionsCount
}

func (t *totals) any() bool {
	return t.conversations > 0 || t.newUsers > 0 || t.contributions > 0
}

func bucketActive(bucket catalog.Bucket) bool {
	return bucket.ConversationsCount > 0 || bucket.NewUsersCount > 0 || bucket.ContributionsCount > 0
}

func percentChange(current, previous int64) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
