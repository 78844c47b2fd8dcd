package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/crawler"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

func TestDoValidate_Valid(t *testing.T) {
	cfgPath := writeConfig(t, `
category_url: "https://tululu.org/l55"
start_page: 3
end_page: 5
`)
	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "WARN: category_url")
	assert.Contains(t, stdout.String(), "OK: category https://tululu.org/l55/")
	assert.Contains(t, stdout.String(), "Configuration valid")
	assert.Empty(t, stderr.String())
}

func TestDoValidate_Invalid(t *testing.T) {
	cfgPath := writeConfig(t, `
start_page: 5
end_page: 5
`)
	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "end_page")
}

func TestDoValidate_FileNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate("/nonexistent/path/config.yaml", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error:")
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "catalog-scraper dev")
}

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	cfgPath := writeConfig(t, `
dest_folder: "/from/file"
max_records: 7
skip_images: true
`)
	f := &crawlFlags{}
	cmd := newCategoryCmd(f)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", cfgPath,
		"--dest_folder", "/from/flag",
		"--last_page", "4",
		"--skip_txt",
	}))

	cfg, _, err := buildConfig(cmd, f)

	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.DestFolder, "explicit flag wins")
	assert.Equal(t, 7, cfg.MaxRecords, "unset flag keeps file value")
	assert.True(t, cfg.SkipImages)
	assert.True(t, cfg.SkipText)
	assert.Equal(t, 1, cfg.StartPage)
	assert.Equal(t, 4, cfg.EndPage)
	assert.Equal(t, config.OutputModeTruncate, cfg.OutputMode)
}

func TestBuildConfig_InvalidFlags(t *testing.T) {
	f := &crawlFlags{}
	cmd := newCategoryCmd(f)
	require.NoError(t, cmd.ParseFlags([]string{"--start_page", "3", "--last_page", "2"}))

	_, _, err := buildConfig(cmd, f)

	assert.Error(t, err)
}

func TestBuildConfig_RangeDefaults(t *testing.T) {
	f := &crawlFlags{}
	cmd := newRangeCmd(f)
	require.NoError(t, cmd.ParseFlags([]string{"--end_id", "3"}))

	cfg, _, err := buildConfig(cmd, f)

	require.NoError(t, err)
	assert.Equal(t, 1, cfg.StartID)
	assert.Equal(t, 3, cfg.EndID)
}

func TestCategoryCommand_EndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/l55/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><body><div id="content">
<table class="d_book"><tr><td></td></tr><tr><td><a href="/b1/">book</a></td></tr></table>
</div></body></html>`)
	})
	mux.HandleFunc("/b1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><body><div id="content"><h1>Книга :: Автор</h1>
<table class="d_book"><tr><td><div class="bookimage"><img src="/images/1.jpg"></div></td></tr>
<tr><td><a href="/txt.php?id=1" title="Книга - скачать книгу txt">txt</a></td></tr></table>
<span class="d_book"><a href="/l55/">Фантастика</a></span></div></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	dest := t.TempDir()
	cfgPath := writeConfig(t, fmt.Sprintf("category_url: %q\n", server.URL+"/l55/"))

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"category",
		"--config", cfgPath,
		"--dest_folder", dest,
		"--last_page", "2",
		"--skip_txt", "--skip_imgs",
		"--loglevel", "error",
	})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "records")

	data, err := os.ReadFile(filepath.Join(dest, "json", "book_desc.json"))
	require.NoError(t, err)
	var records []models.OutputRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Книга", records[0].Title)
	assert.Equal(t, server.URL+"/txt.php?id=1", records[0].BookPath)
	assert.Equal(t, server.URL+"/images/1.jpg", records[0].ImgSrc)
}

func TestCategoryCommand_CancelledWithUnwritableOutputFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"category",
		"--dest_folder", blocker,
		"--last_page", "3",
		"--loglevel", "error",
	})

	err := root.ExecuteContext(ctx)

	require.Error(t, err, "a cancelled run whose records were lost must not succeed")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, crawler.ErrOutputNotWritten)
}

func TestCategoryCommand_CancelledWritesOutputAndSucceeds(t *testing.T) {
	dest := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"category",
		"--dest_folder", dest,
		"--last_page", "3",
		"--loglevel", "error",
	})

	require.NoError(t, root.ExecuteContext(ctx))
	_, err := os.Stat(filepath.Join(dest, "json", "book_desc.json"))
	assert.NoError(t, err)
}
