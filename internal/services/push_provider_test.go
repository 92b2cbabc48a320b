package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"

	"storefront-backend/internal/models"
	"storefront-backend/internal/utils"
)

func fcmError(code int, status, errorCode string) string {
	return fmt.Sprintf(`{"error": {"code": %d, "message": "%s", "status": "%s", "details": [
		{"@type": "type.googleapis.com/google.firebase.fcm.v1.FcmError", "errorCode": "%s"}]}}`,
		code, status, status, errorCode)
}

func TestFCMProvider_Send(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     bool
		wantInvalid bool
	}{
		{"Delivered", http.StatusOK, `{"name": "projects/demo/messages/1"}`, false, false},
		{"Unregistered", http.StatusNotFound, fcmError(404, "NOT_FOUND", "UNREGISTERED"), true, true},
		{"UnregisteredAs400", http.StatusBadRequest, fcmError(400, "INVALID_ARGUMENT", "UNREGISTERED"), true, true},
		{"BadPayload", http.StatusBadRequest, fcmError(400, "INVALID_ARGUMENT", "INVALID_ARGUMENT"), true, false},
		{"Unavailable", http.StatusServiceUnavailable, fcmError(503, "UNAVAILABLE", "UNAVAILABLE"), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc, err := fcm.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
			require.NoError(t, err)
			log := utils.NewTestLogger()
			provider := &FCMProvider{svc: svc, parent: "projects/demo", breaker: newBreaker("fcm-test", log), log: log}

			err = provider.Send(context.Background(), "device-token", models.PushMessage{Title: "Hello", Body: "World"})
			assert.Equal(t, "/v1/projects/demo/messages:send", gotPath)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantInvalid, errors.Is(err, ErrPushTokenInvalid))
		})
	}
}
