package apperr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/khazna/khazna/internal/apperr"
)

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := apperr.BackendUnavailable("vectorstore.Search", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestError_IsMatchesKind(t *testing.T) {
	err := apperr.NotFound("graphstore.GetEntity", nil)
	if !errors.Is(err, apperr.New("", apperr.KindNotFound, nil)) {
		t.Error("expected errors.Is to match on Kind")
	}
	if errors.Is(err, apperr.New("", apperr.KindValidation, nil)) {
		t.Error("expected errors.Is to not match a different Kind")
	}
}

func TestWithContext(t *testing.T) {
	base := apperr.Validation("router.ClassifyIntent", errors.New("empty message"))
	withCtx := base.WithContext(map[string]any{"session_id": "s1"})
	if withCtx.Context["session_id"] != "s1" {
		t.Errorf("expected context to carry session_id, got %+v", withCtx.Context)
	}
	if len(base.Context) != 0 {
		t.Error("WithContext must not mutate the receiver")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("op", nil), http.StatusBadRequest},
		{apperr.BackendUnavailable("op", nil), http.StatusServiceUnavailable},
		{apperr.NotFound("op", nil), http.StatusNotFound},
		{apperr.ConflictDuplicate("op", nil), http.StatusOK},
		{apperr.ExtractionEmpty("op", nil), http.StatusOK},
		{apperr.Fatal("op", nil), http.StatusInternalServerError},
		{errors.New("plain error"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := apperr.HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v): got %d, want %d", c.err, got, c.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !apperr.IsRetryable(apperr.BackendUnavailable("op", nil)) {
		t.Error("expected BackendUnavailable to be retryable")
	}
	if apperr.IsRetryable(apperr.Validation("op", nil)) {
		t.Error("expected Validation to not be retryable")
	}
	if apperr.IsRetryable(errors.New("plain")) {
		t.Error("expected plain error to not be retryable")
	}
}
