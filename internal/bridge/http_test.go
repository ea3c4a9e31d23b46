package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var msg UnregisterMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
			_ = json.NewEncoder(w).Encode(ResultEnvelope{Success: true, Message: "bye"})
		}))
		defer ts.Close()

		var out ResultEnvelope
		err := PostJSON(context.Background(), ts.URL, UnregisterMessage{ProcessID: 7}, &out)

		require.NoError(t, err)
		assert.True(t, out.Success)
		assert.Equal(t, "bye", out.Message)
	})

	t.Run("nil out skips decoding", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json at all"))
		}))
		defer ts.Close()

		assert.NoError(t, PostJSON(context.Background(), ts.URL, UnregisterMessage{}, nil))
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "no", http.StatusNotFound)
		}))
		defer ts.Close()

		err := PostJSON(context.Background(), ts.URL, UnregisterMessage{}, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("failure envelope error is surfaced", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(Failure("unknown processId 7, re-register"))
		}))
		defer ts.Close()

		err := PostJSON(context.Background(), ts.URL, UnregisterMessage{ProcessID: 7}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
		assert.Contains(t, err.Error(), "unknown processId 7")
	})
}

func TestGetJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(ResultEnvelope{Success: true})
		}))
		defer ts.Close()

		var out ResultEnvelope
		require.NoError(t, GetJSON(context.Background(), ts.URL, &out))
		assert.True(t, out.Success)
	})

	t.Run("failure envelope error is surfaced", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(Failure("no analysis backend available"))
		}))
		defer ts.Close()

		var out ResultEnvelope
		err := GetJSON(context.Background(), ts.URL, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no analysis backend available")
	})
}

func TestFailure(t *testing.T) {
	env := Failure("backend on port %d unreachable", 5001)
	assert.False(t, env.Success)
	assert.Equal(t, "backend on port 5001 unreachable", env.Error)
}
