package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicketFields(t *testing.T) {
	tk := New("SN-1234", "Volume /vol1 is full")

	assert.Equal(t, "Automatic alert (SN-1234)", tk.Title)
	assert.Equal(t, "Volume /vol1 is full", tk.Body)
	assert.Equal(t, Category, tk.Category)
	assert.Equal(t, Criticality, tk.Criticality)
	assert.Equal(t, Environment, tk.Environment)
	assert.Equal(t, "SN-1234", tk.Serial)
}

func TestHTTPClientOpen(t *testing.T) {
	var received Ticket
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(201)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	require.NoError(t, c.Open(context.Background(), New("SN-1", "body")))
	assert.Equal(t, "body", received.Body)
}

func TestHTTPClientOpenRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", 429)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	err := c.Open(context.Background(), New("SN-1", "body"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestHTMLToText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"<b>bold</b> move", "bold move"},
		{"line one<br>line two", "line one\nline two"},
		{"line one<br/>line two", "line one\nline two"},
		{"<p>first</p><p>second</p>", "first\n\nsecond"},
		{"<div><ul><li>a</li><li>b</li></ul></div>", "a\n\nb"},
		{"trailing <> empty tag", "trailing  empty tag"},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HTMLToText(tc.in), "input: %q", tc.in)
	}
}
