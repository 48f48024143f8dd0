package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWaiter struct {
	mu   sync.Mutex
	apis []string
	err  error
}

func (w *recordingWaiter) Wait(_ context.Context, api string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.apis = append(w.apis, api)
	return w.err
}

func TestGetJSON_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Sol Ring","cmc":1}`))
	}))
	defer srv.Close()

	lim := &recordingWaiter{}
	c := New("scryfall", WithLimiter(lim), WithUserAgent("mtgctx-test/0"))

	var out struct {
		Name string  `json:"name"`
		CMC  float64 `json:"cmc"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "Sol Ring", out.Name)
	assert.Equal(t, 1.0, out.CMC)
	assert.Equal(t, "mtgctx-test/0", gotUA)
	assert.Equal(t, []string{"scryfall"}, lim.apis)
}

func TestGetJSON_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		details string
	}{
		{"not found", http.StatusNotFound, `{"object":"error","details":"No cards found matching \"zzz\""}`, KindNotFound, `No cards found matching "zzz"`},
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, KindUpstream, "boom"},
		{"rate limited", http.StatusTooManyRequests, `not json`, KindUpstream, ""},
		{"bad request", http.StatusBadRequest, `{"detail":"bad query"}`, KindUpstream, "bad query"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := New("edhrec").GetJSON(context.Background(), srv.URL, &struct{}{})
			require.Error(t, err)

			var ue *Error
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tc.kind, ue.Kind)
			assert.Equal(t, tc.status, ue.Status)
			assert.Equal(t, tc.details, ue.Details)
			assert.Equal(t, "edhrec", ue.API)
			assert.Equal(t, srv.URL, ue.URL)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestGetJSON_MalformedBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":`))
	}))
	defer srv.Close()

	err := New("archidekt").GetJSON(context.Background(), srv.URL, &struct{}{})
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestGetText_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New("wizards").GetText(context.Background(), url)
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Contains(t, err.Error(), "upstream: wizards: request failed")
}

func TestGetText_ReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("1. Game Concepts\n100. General"))
	}))
	defer srv.Close()

	text, err := New("wizards").GetText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "1. Game Concepts\n100. General", text)
}

func TestGet_LimiterErrorSkipsRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	defer srv.Close()

	c := New("moxfield", WithLimiter(&recordingWaiter{err: context.Canceled}))
	err := c.GetJSON(context.Background(), srv.URL, &struct{}{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestKindOf_Foreign(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.True(t, IsNotFound(&Error{Kind: KindNotFound}))
}

func TestValidation(t *testing.T) {
	err := Validation("archidekt", "invalid deck URL")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, "upstream: archidekt: invalid deck URL", err.Error())
}
