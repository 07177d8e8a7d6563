package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  *errcode.Error
		want int
	}{
		{errcode.ErrSuccess, http.StatusOK},
		{errcode.ErrInvalidParam, http.StatusBadRequest},
		{errcode.ErrTokenMissing, http.StatusUnauthorized},
		{errcode.ErrCodeInvalid, http.StatusUnauthorized},
		{errcode.ErrNotAdmin, http.StatusForbidden},
		{errcode.ErrStoreFailure, http.StatusInternalServerError},
		{errcode.ErrConnOverLimit, http.StatusServiceUnavailable},
		{errcode.ErrTopicInvalid, http.StatusBadGateway},
		{errcode.ErrBlankMessage, http.StatusBadRequest},
		{errcode.ErrNothingPending, http.StatusNotFound},
		{errcode.ErrInternalServer, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Status(tt.err), tt.err.Msg)
	}
}
