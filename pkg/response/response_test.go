package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
)

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		name string
		kind domain.ErrorKind
		want int
	}{
		{"validation", domain.KindValidation, http.StatusBadRequest},
		{"not found", domain.KindNotFound, http.StatusNotFound},
		{"conflict", domain.KindConflict, http.StatusConflict},
		{"forbidden", domain.KindForbidden, http.StatusForbidden},
		{"payment", domain.KindPayment, http.StatusPaymentRequired},
		{"internal", domain.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForKind(tt.kind))
		})
	}
}
