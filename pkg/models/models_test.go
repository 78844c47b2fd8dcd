package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewBookRecord_RequiresTextLink(t *testing.T) {
	_, err := NewBookRecord("Title", "Author", "  ", "/covers/1.jpg", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTextLink)
}

func TestNewBookRecord_NormalizesSlices(t *testing.T) {
	rec, err := NewBookRecord("Title", "Author", "/txt.php?id=1", "", nil, nil)
	require.NoError(t, err)

	assert.NotNil(t, rec.Genres)
	assert.NotNil(t, rec.Comments)
	assert.Empty(t, rec.CoverRemoteLink)
	assert.Equal(t, "/txt.php?id=1", rec.TextRemoteLink)
}

func TestBookRecord_WithPathsReturnCopies(t *testing.T) {
	rec, err := NewBookRecord("Title", "Author", "/txt.php?id=1", "/img/1.jpg", []string{"Sci-fi"}, nil)
	require.NoError(t, err)

	withText, err := rec.WithTextPath("books/Title.txt")
	require.NoError(t, err)
	withBoth, err := withText.WithCoverPath("images/Title.jpg")
	require.NoError(t, err)

	assert.Empty(t, rec.TextLocalPath, "receiver must stay untouched")
	assert.Equal(t, "books/Title.txt", withBoth.TextLocalPath)
	assert.Equal(t, "images/Title.jpg", withBoth.CoverLocalPath)
}

func TestBookRecord_PathSetOnce(t *testing.T) {
	rec, err := NewBookRecord("Title", "Author", "/txt.php?id=1", "", nil, nil)
	require.NoError(t, err)

	rec, err = rec.WithTextPath("books/a.txt")
	require.NoError(t, err)
	_, err = rec.WithTextPath("books/b.txt")
	assert.ErrorIs(t, err, ErrAlreadySet)

	rec, err = rec.WithCoverPath("images/a.jpg")
	require.NoError(t, err)
	_, err = rec.WithCoverPath("images/b.jpg")
	assert.ErrorIs(t, err, ErrAlreadySet)
}

func TestOutputRecord_JSONShape(t *testing.T) {
	rec := BookRecord{Title: "Алиса", Author: "Кэрролл", TextRemoteLink: "/txt.php?id=1"}

	data, err := json.Marshal(rec.Output("", "books/Алиса.txt"))
	require.NoError(t, err)

	raw := string(data)
	assert.Equal(t, `{"title":"Алиса","author":"Кэрролл","book_path":"books/Алиса.txt","genres":[],"comments":[]}`, raw)
	assert.NotContains(t, raw, "img_src")
	assert.NotContains(t, raw, "null")
}

func TestRunMetadata_YAMLRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second).UTC()
	meta := RunMetadata{
		RunID:       "f3b0c442-98fc-4c14-9a4d-0c9ae0c2c5a1",
		Mode:        "category",
		CategoryURL: "https://tululu.org/l55/",
		StartTime:   now,
		EndTime:     now.Add(time.Minute),
		OutputPath:  "json/book_desc.json",
		RecordCount: 1,
		Counters:    map[string]int{"absent": 2},
		Books: []BookMetadata{
			{Title: "Title", Author: "Author", TextPath: "books/Title.txt"},
		},
	}

	data, err := yaml.Marshal(meta)
	require.NoError(t, err)

	var got RunMetadata
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, meta, got)
	assert.NotContains(t, string(data), "failure_reason")
}
