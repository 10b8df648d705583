package parser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var digitsRe = regexp.MustCompile(`\d+`)

// ageLayout is the timestamp format of the age element's title attribute.
const ageLayout = "2006-01-02T15:04:05"

// Metadata holds the optional per-story fields read from the metadata row.
type Metadata struct {
	Points           *int
	PostDate         *time.Time
	NumberOfComments *int
}

// MetadataExtractor reads points, post date and comment count from the row
// that follows a story row. Each field is looked up on its own; a missing
// or malformed element leaves only that field nil.
type MetadataExtractor struct {
	score  Selector
	age    Selector
	link   Selector
	logger *slog.Logger
}

// NewMetadataExtractor creates a metadata extractor for the given markers.
func NewMetadataExtractor(score, age Selector, logger *slog.Logger) *MetadataExtractor {
	return &MetadataExtractor{
		score:  score,
		age:    age,
		link:   Selector{Tag: "a"},
		logger: logger.With("component", "metadata_extractor"),
	}
}

// Extract reads all metadata fields from node. A nil node yields empty
// metadata.
func (m *MetadataExtractor) Extract(node Node) Metadata {
	if node == nil {
		return Metadata{}
	}
	return Metadata{
		Points:           m.points(node),
		PostDate:         m.postDate(node),
		NumberOfComments: m.comments(node),
	}
}

func (m *MetadataExtractor) points(node Node) *int {
	score, ok := node.Find(m.score)
	if !ok {
		return nil
	}
	digits := digitsRe.FindString(score.Text())
	if digits == "" {
		m.logger.Debug("score without digits", "text", score.Text())
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

// postDate parses the age title, which looks like
// "2024-01-15T12:34:56 1705322096" on current markup and carries only the
// first token on older pages.
func (m *MetadataExtractor) postDate(node Node) *time.Time {
	age, ok := node.Find(m.age)
	if !ok {
		return nil
	}
	title, ok := age.Attr("title")
	if !ok {
		return nil
	}

	fields := strings.Fields(title)
	if len(fields) == 0 {
		return nil
	}
	if t, err := time.ParseInLocation(ageLayout, fields[0], time.UTC); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, fields[0]); err == nil {
		t = t.UTC()
		return &t
	}
	if len(fields) > 1 {
		if secs, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
			t := time.Unix(secs, 0).UTC()
			return &t
		}
	}

	m.logger.Debug("unparseable age title", "title", title)
	return nil
}

// comments reads the leading count of the first link mentioning comments.
// "discuss" links and non-numeric counts yield nil.
func (m *MetadataExtractor) comments(node Node) *int {
	for _, link := range node.FindAll(m.link) {
		text := link.Text()
		if !strings.Contains(strings.ToLower(text), "comment") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) == 0 || !isDigits(fields[0]) {
			return nil
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
