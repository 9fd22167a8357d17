package para

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageInfo(t *testing.T) {
	html := `<html><head>
		<title>  Garden Journal  </title>
		<meta name="description" content="Notes on seasonal planting.">
	</head><body><h1>ignored</h1></body></html>`

	info, err := ParsePageInfo(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Garden Journal", info.Title)
	assert.Equal(t, "Notes on seasonal planting.", info.Description)
}

func TestParsePageInfoOGDescriptionFallback(t *testing.T) {
	html := `<html><head>
		<title>Post</title>
		<meta property="og:description" content="Shared description.">
	</head></html>`

	info, err := ParsePageInfo(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Shared description.", info.Description)
}

func TestParsePageInfoSkipsEmptyDescription(t *testing.T) {
	html := `<html><head>
		<title>Post</title>
		<meta name="description" content="   ">
		<meta property="og:description" content="Second source.">
	</head></html>`

	info, err := ParsePageInfo(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Second source.", info.Description)
}

func TestParsePageInfoMissingMetadata(t *testing.T) {
	info, err := ParsePageInfo(strings.NewReader(`<html><body>bare</body></html>`))
	require.NoError(t, err)
	assert.Empty(t, info.Title)
	assert.Empty(t, info.Description)
}

func TestFetchPageInfo(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<html><head><title>Fetched</title></head></html>`))
	}))
	defer srv.Close()

	info, err := FetchPageInfo(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Fetched", info.Title)
	assert.Equal(t, "Sage/1.0", gotUA)
}

func TestFetchPageInfoNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := FetchPageInfo(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
