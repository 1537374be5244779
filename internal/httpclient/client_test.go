package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_GetDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/tokens/0xabc", r.URL.Path)
		assert.Equal(t, "a b", r.URL.Query().Get("q"))
		assert.Equal(t, "savvy", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"data":{"price":"1.5"}}`))
	}))
	defer srv.Close()

	c, err := NewInstrumentedClient(
		WithBaseURL(srv.URL+"/api/v2/"),
		WithHeaders(map[string]string{"User-Agent": "savvy"}),
	)
	require.NoError(t, err)

	var out struct {
		Data struct {
			Price string `json:"price"`
		} `json:"data"`
	}
	resp, err := c.NewRequest().SetQueryParam("q", "a b").SetResult(&out).Get(context.Background(), "/tokens/0xabc")
	require.NoError(t, err)
	assert.False(t, resp.IsError())
	assert.Equal(t, "1.5", out.Data.Price)
}

func TestRequest_ErrorHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	c, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	sentinel := errors.New("upstream 404")
	resp, err := c.NewRequestWithOptions(
		WithLabels(NewLabel("endpoint", "tokens")),
		WithResponseErrorHandler(func(status int, body []byte) error {
			if status >= 400 {
				return sentinel
			}
			return nil
		}),
	).Get(context.Background(), "/tokens/0x1")

	require.ErrorIs(t, err, sentinel)
	require.NotNil(t, resp)
	assert.True(t, resp.IsError())
	assert.Contains(t, resp.String(), "not found")
}

func TestRequest_DecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	var out map[string]any
	_, err = c.NewRequest().SetResult(&out).Get(context.Background(), "/")
	assert.Error(t, err)
}

func TestRequest_PostJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"token":"0x1"}`, string(b))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.NewRequest().SetBody(map[string]string{"token": "0x1"}).Post(context.Background(), "/actions")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

type countingTransport struct {
	calls int
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls++
	return http.DefaultTransport.RoundTrip(r)
}

func TestClient_CustomTransportWithBodyTracing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rt := &countingTransport{}
	c, err := NewInstrumentedClient(
		WithBaseURL(srv.URL),
		WithRoundTripper(rt),
		WithBodyTracing(true, true),
	)
	require.NoError(t, err)

	_, err = c.NewRequest().SetBody(map[string]int{"n": 1}).Post(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, 1, rt.calls)
}
