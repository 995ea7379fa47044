package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/vidtube/backend/internal/apperr"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", err: nil, want: "ok"},
		{name: "validation", err: apperr.Validation("bad"), want: "validation"},
		{name: "conflict", err: apperr.Conflict("taken"), want: "conflict"},
		{name: "not found", err: apperr.NotFound("missing"), want: "not_found"},
		{name: "auth", err: apperr.Auth("denied"), want: "auth"},
		{name: "unavailable", err: apperr.Unavailable("down", errors.New("dial")), want: "unavailable"},
		{name: "untyped", err: errors.New("boom"), want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("test.op", "auth"))
	ObserveOperation("test.op", apperr.Auth("denied"))
	assert.Equal(t, before+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("test.op", "auth")))
}
