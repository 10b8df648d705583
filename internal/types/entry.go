package types

import (
	"time"
)

// Entry is one keyword-matched story extracted from a listing page.
type Entry struct {
	// MatchedKeywords lists every configured keyword found in the title.
	MatchedKeywords []string `bson:"matched_keywords" json:"matched_keywords" validate:"min=1,dive,required"`

	// Title is the story title and the identity key for deduplication.
	Title string `bson:"title" json:"title" validate:"required"`

	// URL is the absolute story link.
	URL string `bson:"url" json:"url" validate:"required,url"`

	Points           *int       `bson:"points" json:"points" validate:"omitempty,gte=0"`
	PostDate         *time.Time `bson:"post_date" json:"post_date"`
	NumberOfComments *int       `bson:"number_of_comments" json:"number_of_comments" validate:"omitempty,gte=0"`

	// UpdatedAt is set when a later scrape refreshed the volatile fields.
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ScrapeRun is the result of one pipeline execution across all pages.
type ScrapeRun struct {
	ID           string    `bson:"run_id" json:"run_id" validate:"required"`
	RunTimestamp time.Time `bson:"scrape_date" json:"scrape_date" validate:"required"`
	Entries      []Entry   `bson:"saves" json:"saves" validate:"dive"`
}

// Titles returns the identity keys of the run's entries.
func (r *ScrapeRun) Titles() []string {
	titles := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		titles = append(titles, e.Title)
	}
	return titles
}

// IsEmpty reports whether the run carries nothing to save.
func (r *ScrapeRun) IsEmpty() bool {
	return r == nil || len(r.Entries) == 0
}

// StoredRun is the persisted, day-scoped aggregate of entries.
type StoredRun struct {
	RunID      string    `bson:"run_id" json:"run_id"`
	ScrapeDate time.Time `bson:"scrape_date" json:"scrape_date"`
	Saves      []Entry   `bson:"saves" json:"saves"`
}

// SavedEntry is an entry together with the date of the run that holds it.
type SavedEntry struct {
	Entry      `bson:",inline"`
	ScrapeDate time.Time `bson:"scrape_date" json:"scrape_date"`
}

// EntryUpdate carries the volatile fields refreshed on a duplicate.
type EntryUpdate struct {
	Points           *int
	NumberOfComments *int
	UpdatedAt        time.Time
}

// UpdateFrom builds the refresh for a duplicate of e.
func UpdateFrom(e Entry, at time.Time) EntryUpdate {
	return EntryUpdate{
		Points:           e.Points,
		NumberOfComments: e.NumberOfComments,
		UpdatedAt:        at,
	}
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayRange returns the half-open interval [start, end) covering day.
func DayRange(day time.Time) (time.Time, time.Time) {
	start := StartOfDay(day, day.Location())
	return start, start.AddDate(0, 0, 1)
}

// DayKey formats a day as YYYY-MM-DD.
func DayKey(day time.Time) string {
	return day.Format("2006-01-02")
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
