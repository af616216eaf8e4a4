package linkreader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!DOCTYPE html>
<html>
<head>
<title>Fallback Title</title>
<meta property="og:title" content="Service Guide">
<meta name="description" content="How to apply for a residence permit.">
<meta property="og:site_name" content="City Portal">
<script>alert("ignore me")</script>
</head>
<body>
<nav>Home | About</nav>
<h1>Residence Permit</h1>
<p>Bring your <strong>ID card</strong> and proof of address.</p>
<footer>Copyright</footer>
</body>
</html>`

func TestRunExtractsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(testPage))
	}))
	defer srv.Close()

	tool := New()
	out, err := tool.Run(context.Background(), NewInput(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "Service Guide", out.Title)
	assert.Equal(t, "How to apply for a residence permit.", out.Description)
	assert.Equal(t, "City Portal", out.SiteName)
	assert.Contains(t, out.Content, "Residence Permit")
	assert.Contains(t, out.Content, "**ID card**")
	assert.NotContains(t, out.Content, "alert")
	assert.NotContains(t, out.Content, "Home | About")
}

func TestRunBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tool := New()
	_, err := tool.Run(context.Background(), NewInput(srv.URL))
	assert.Error(t, err)
}

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("看看这个 https://example.com/a 和 http://test.cn/b?x=1 吧")
	assert.Equal(t, []string{"https://example.com/a", "http://test.cn/b?x=1"}, urls)
	assert.Empty(t, ExtractURLs("没有链接"))
}
