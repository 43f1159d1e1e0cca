package metrics

import (
	"errors"
	"strings"

	"github.com/foresafe/foresafe/internal/apperr"
)

// Result turns an operation error into a low-cardinality label value.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return strings.ToLower(string(ae.Code))
	}
	return "error"
}
