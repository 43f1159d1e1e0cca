package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/foresafe/foresafe/internal/apperr"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "push_disabled", Result(apperr.PushDisabled("muted")))
	assert.Equal(t, "not_found", Result(fmt.Errorf("wrap: %w", apperr.NotFound("missing"))))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestInitTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestAlertsCounter(t *testing.T) {
	before := testutil.ToFloat64(Alerts.WithLabelValues("PARKING", "ok"))
	Alerts.WithLabelValues("PARKING", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Alerts.WithLabelValues("PARKING", "ok")))
}
