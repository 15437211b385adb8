package response

import (
	"fmt"
	"net/http"
	"testing"

	"KikenQR/pkg/errors"
)

func TestStatusForWrappedDefinitions(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("lookup: %w", errors.NetworkError), http.StatusBadGateway},
		{fmt.Errorf("step1: %w", errors.ProximityError), http.StatusForbidden},
		{errors.SchemaIntegrityError, http.StatusUnprocessableEntity},
		{errors.FieldErrors{1: "required"}, http.StatusBadRequest},
		{errors.SessionBusy, http.StatusConflict},
		{fmt.Errorf("plain failure"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
