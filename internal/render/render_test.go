package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/vktop/pkg/wall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePosts() []wall.Post {
	at := time.Date(2024, 6, 30, 12, 5, 0, 0, time.UTC)
	return []wall.Post{
		{ID: 45, OwnerID: -1, Likes: 1200, Reposts: 3, Date: at, Text: "first line\nsecond line"},
		{ID: 7, OwnerID: -1, Likes: 80, Reposts: 40, Date: at.AddDate(0, 0, -3), Text: "short", Pinned: true},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "table": FormatTable, "JSON": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, samplePosts(), Options{Metric: wall.MetricLikes}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, []string{"#", "URL", "Date", "Likes", "Reposts"}, strings.Fields(lines[0]))
	assert.Equal(t,
		[]string{"1.", "https://vk.com/wall-1_45", "2024-06-30", "12:05", "1200", "3"},
		strings.Fields(lines[1]))
	assert.Equal(t,
		[]string{"2.", "https://vk.com/wall-1_7", "2024-06-27", "12:05", "80", "40"},
		strings.Fields(lines[2]))

	// Columns are aligned.
	col := strings.Index(lines[0], "Date")
	assert.Equal(t, col, strings.Index(lines[1], "2024-06-30"))
	assert.Equal(t, col, strings.Index(lines[2], "2024-06-27"))
}

func TestTable_RepostsFirst(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, samplePosts()[1:], Options{Metric: wall.MetricReposts}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{"#", "URL", "Date", "Reposts", "Likes"}, strings.Fields(lines[0]))
	assert.Equal(t, "40", strings.Fields(lines[1])[4])
}

func TestTable_TextColumn(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, samplePosts(), Options{TextWidth: 8}))

	out := buf.String()
	assert.Contains(t, out, "Text")
	assert.Contains(t, out, "first...")
	assert.NotContains(t, out, "second line")
	assert.Contains(t, out, "short")
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, nil, Options{}))
	assert.Equal(t, EmptyMessage+"\n", buf.String())
}

func TestPreview(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"  padded\nrest", 20, "padded"},
		{"tab\there", 20, "tab here"},
		{"привет мир", 7, "прив..."},
		{"abcdef", 2, "ab"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Preview(tt.text, tt.width), "Preview(%q, %d)", tt.text, tt.width)
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, samplePosts(), Options{Format: FormatJSON, Metric: wall.MetricReposts}))

	var got struct {
		Metric string `json:"metric"`
		Count  int    `json:"count"`
		Posts  []struct {
			Rank   int    `json:"rank"`
			URL    string `json:"url"`
			Likes  int    `json:"likes"`
			Pinned bool   `json:"pinned"`
			Text   string `json:"text"`
		} `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "reposts", got.Metric)
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Posts, 2)
	assert.Equal(t, 1, got.Posts[0].Rank)
	assert.Equal(t, "https://vk.com/wall-1_45", got.Posts[0].URL)
	assert.Equal(t, "first line\nsecond line", got.Posts[0].Text)
	assert.True(t, got.Posts[1].Pinned)
}

func TestJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, nil, ""))
	assert.Contains(t, buf.String(), `"posts": []`)
	assert.Contains(t, buf.String(), `"metric": "likes"`)
}

func TestElapsed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Elapsed(&buf, 1234*time.Millisecond))
	assert.Equal(t, "Elapsed time: 1.23 sec.\n", buf.String())
}
