package binder_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskqueue/pkg/binder"
)

type createRequest struct {
	Type  string `json:"type"`
	Tries int    `json:"tries"`
}

func newRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()
		var v createRequest
		require.NoError(t, binder.JSON()(newRequest(`{"type":"request","tries":3}`, "application/json"), &v))
		assert.Equal(t, createRequest{Type: "request", Tries: 3}, v)
	})

	t.Run("content type with charset", func(t *testing.T) {
		t.Parallel()
		var v createRequest
		require.NoError(t, binder.JSON()(newRequest(`{"type":"a"}`, "application/json; charset=utf-8"), &v))
		assert.Equal(t, "a", v.Type)
	})

	t.Run("missing content type", func(t *testing.T) {
		t.Parallel()
		err := binder.JSON()(newRequest(`{"type":"a"}`, ""), &createRequest{})
		assert.ErrorIs(t, err, binder.ErrMissingContentType)
		assert.Equal(t, http.StatusUnsupportedMediaType, binder.StatusCode(err))
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		err := binder.JSON()(newRequest(`type=a`, "application/x-www-form-urlencoded"), &createRequest{})
		assert.ErrorIs(t, err, binder.ErrUnsupportedMediaType)
	})

	t.Run("body too large", func(t *testing.T) {
		t.Parallel()
		err := binder.JSON(binder.WithMaxBytes(8))(newRequest(`{"type":"too long"}`, "application/json"), &createRequest{})
		assert.ErrorIs(t, err, binder.ErrBodyTooLarge)
		assert.Equal(t, http.StatusRequestEntityTooLarge, binder.StatusCode(err))
	})

	t.Run("strict decoding", func(t *testing.T) {
		t.Parallel()
		bind := binder.JSON()
		for _, body := range []string{
			``,
			`{"type":`,
			`{"type":"a","priority":1}`,
			`{"type":"a"}{"type":"b"}`,
			`{"tries":"three"}`,
		} {
			err := bind(newRequest(body, "application/json"), &createRequest{})
			assert.ErrorIs(t, err, binder.ErrFailedToParseJSON, body)
			assert.Equal(t, http.StatusBadRequest, binder.StatusCode(err), body)
		}
	})

	t.Run("cancelled request", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := newRequest(`{"type":"a"}`, "application/json").WithContext(ctx)
		assert.ErrorIs(t, binder.JSON()(req, &createRequest{}), binder.ErrFailedToParseJSON)
	})
}
