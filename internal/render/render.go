// Package render prints a ranked post list as an aligned table or as JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/vktop/pkg/wall"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table or json)", s)
	}
}

// EmptyMessage is printed by the table renderer when there is nothing to rank.
const EmptyMessage = "There are no posts to show."

// TimeLayout is how post dates appear in the table.
const TimeLayout = "2006-01-02 15:04"

// Options tune the table output.
type Options struct {
	Format Format
	Metric wall.Metric

	// TextWidth adds a column with the first TextWidth runes of each post's
	// text. Zero hides the column.
	TextWidth int
}

// Write renders posts in the configured format.
func Write(w io.Writer, posts []wall.Post, opts Options) error {
	if opts.Format == FormatJSON {
		return JSON(w, posts, opts.Metric)
	}
	return Table(w, posts, opts)
}

// Table prints a numbered, column aligned list. The ranking metric column
// comes first after the date.
func Table(w io.Writer, posts []wall.Post, opts Options) error {
	if len(posts) == 0 {
		_, err := fmt.Fprintln(w, EmptyMessage)
		return err
	}

	metric := opts.Metric
	if metric == "" {
		metric = wall.MetricLikes
	}
	other := wall.MetricReposts
	if metric == wall.MetricReposts {
		other = wall.MetricLikes
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := []string{"#", "URL", "Date", metric.Title(), other.Title()}
	if opts.TextWidth > 0 {
		header = append(header, "Text")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for i, p := range posts {
		row := []string{
			fmt.Sprintf("%d.", i+1),
			p.URL(),
			p.Date.Format(TimeLayout),
			fmt.Sprint(p.Value(metric)),
			fmt.Sprint(p.Value(other)),
		}
		if opts.TextWidth > 0 {
			row = append(row, Preview(p.Text, opts.TextWidth))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// Preview returns the first line of text cut to width runes.
func Preview(text string, width int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.ReplaceAll(line, "\t", " ")
	if width <= 0 || utf8.RuneCountInString(line) <= width {
		return line
	}
	if width <= 3 {
		return string([]rune(line)[:width])
	}
	return string([]rune(line)[:width-3]) + "..."
}

type jsonPost struct {
	Rank    int       `json:"rank"`
	URL     string    `json:"url"`
	ID      int64     `json:"id"`
	OwnerID int64     `json:"owner_id"`
	Date    time.Time `json:"date"`
	Likes   int       `json:"likes"`
	Reposts int       `json:"reposts"`
	Pinned  bool      `json:"pinned,omitempty"`
	Text    string    `json:"text"`
}

type jsonOutput struct {
	Metric wall.Metric `json:"metric"`
	Count  int         `json:"count"`
	Posts  []jsonPost  `json:"posts"`
}

// JSON writes the ranked list as one indented document. An empty list is
// written as an empty posts array.
func JSON(w io.Writer, posts []wall.Post, metric wall.Metric) error {
	if metric == "" {
		metric = wall.MetricLikes
	}
	out := jsonOutput{
		Metric: metric,
		Count:  len(posts),
		Posts:  make([]jsonPost, 0, len(posts)),
	}
	for i, p := range posts {
		out.Posts = append(out.Posts, jsonPost{
			Rank:    i + 1,
			URL:     p.URL(),
			ID:      p.ID,
			OwnerID: p.OwnerID,
			Date:    p.Date,
			Likes:   p.Likes,
			Reposts: p.Reposts,
			Pinned:  p.Pinned,
			Text:    p.Text,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

// Elapsed prints the run duration line shown after the table.
func Elapsed(w io.Writer, d time.Duration) error {
	_, err := fmt.Fprintf(w, "Elapsed time: %.2f sec.\n", d.Seconds())
	return err
}
