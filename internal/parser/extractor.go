package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/IshaanNene/storyscout/internal/config"
	"github.com/IshaanNene/storyscout/internal/keyword"
	"github.com/IshaanNene/storyscout/internal/types"
)

// EntryExtractor pulls keyword-matched stories out of a listing document.
//
// Story rows are found by their structural marker, never by position. The
// metadata for a story lives in the element that directly follows its row,
// so that sibling is only read for rows whose title matched.
type EntryExtractor struct {
	matcher   *keyword.Matcher
	metadata  *MetadataExtractor
	storyRow  Selector
	titleLine Selector
	titleLink Selector
	logger    *slog.Logger
}

// NewEntryExtractor creates an extractor from the configured markers.
func NewEntryExtractor(matcher *keyword.Matcher, sel config.SelectorsConfig, logger *slog.Logger) (*EntryExtractor, error) {
	parsed := make(map[string]Selector, 4)
	for name, raw := range map[string]string{
		"story_row":  sel.StoryRow,
		"title_line": sel.TitleLine,
		"score":      sel.Score,
		"age":        sel.Age,
	} {
		s, err := ParseSelector(raw)
		if err != nil {
			return nil, fmt.Errorf("selector %s: %w", name, err)
		}
		parsed[name] = s
	}

	return &EntryExtractor{
		matcher:   matcher,
		metadata:  NewMetadataExtractor(parsed["score"], parsed["age"], logger),
		storyRow:  parsed["story_row"],
		titleLine: parsed["title_line"],
		titleLink: Selector{Tag: "a"},
		logger:    logger.With("component", "entry_extractor"),
	}, nil
}

// Extract returns the matching entries of a document in document order.
// Rows without a title link are skipped; pageURL is the base for relative
// story links.
func (x *EntryExtractor) Extract(root Node, pageURL string) []types.Entry {
	entries, _ := x.ExtractRows(root, pageURL)
	return entries
}

// ExtractRows is Extract that also reports how many story rows the document
// held, matched or not.
func (x *EntryExtractor) ExtractRows(root Node, pageURL string) ([]types.Entry, int) {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	rows := root.FindAll(x.storyRow)

	var entries []types.Entry
	for i, row := range rows {
		title, href, ok := x.titleOf(row)
		if !ok {
			x.logger.Debug("story row without title link", "page", pageURL, "row", i)
			continue
		}

		matched := x.matcher.Match(title)
		if len(matched) == 0 {
			continue
		}

		var meta Metadata
		if next, ok := row.NextSibling(); ok {
			meta = x.metadata.Extract(next)
		} else {
			x.logger.Debug("story row without metadata row", "page", pageURL, "title", title)
		}

		entries = append(entries, types.Entry{
			MatchedKeywords:  matched,
			Title:            title,
			URL:              resolve(base, href),
			Points:           meta.Points,
			PostDate:         meta.PostDate,
			NumberOfComments: meta.NumberOfComments,
		})
	}

	return entries, len(rows)
}

func (x *EntryExtractor) titleOf(row Node) (string, string, bool) {
	line, ok := row.Find(x.titleLine)
	if !ok {
		return "", "", false
	}
	link, ok := line.Find(x.titleLink)
	if !ok {
		return "", "", false
	}
	title := strings.TrimSpace(link.Text())
	href, ok := link.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || !ok || href == "" {
		return "", "", false
	}
	return title, href, true
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
