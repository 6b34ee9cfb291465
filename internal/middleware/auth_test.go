package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/mocks"
	"github.com/thereayou/chat-relay/internal/models"
	"go.uber.org/mock/gomock"
)

func newRouter(a Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(a), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.MustGet(UserIDKey), "token": c.GetString(TokenKey)})
	})
	return r
}

func TestAuthMiddleware_SetsUser(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	authenticator := mocks.NewMockAuthenticator(ctrl)

	// Given a token that resolves to a user
	user := &models.User{ID: uuid.New(), Handle: "ahmed2024"}
	authenticator.EXPECT().Authenticate(gomock.Any(), "good").Return(user, nil)

	// When the request carries it as a bearer token
	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	newRouter(authenticator).ServeHTTP(w, r)

	// Then the handler sees the user id and the token
	req.Equal(http.StatusOK, w.Code)
	var body map[string]string
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Equal(user.ID.String(), body["id"])
	req.Equal("good", body["token"])
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	ctrl := gomock.NewController(t)
	authenticator := mocks.NewMockAuthenticator(ctrl)
	authenticator.EXPECT().Authenticate(gomock.Any(), "revoked").
		Return(nil, apperr.New(apperr.KindAuthFailed, "token is revoked"))
	authenticator.EXPECT().Authenticate(gomock.Any(), "slow").
		Return(nil, apperr.Wrap(apperr.KindTimeout, "operation timed out", errors.New("deadline")))

	cases := []struct {
		name   string
		header string
		status int
		kind   string
	}{
		{"missing header", "", http.StatusUnauthorized, "auth_failed"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "auth_failed"},
		{"revoked token", "Bearer revoked", http.StatusUnauthorized, "auth_failed"},
		{"store timeout", "Bearer slow", http.StatusGatewayTimeout, "timeout"},
	}
	router := newRouter(authenticator)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			r := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			req.Equal(tc.status, w.Code)
			var body struct {
				Error struct {
					Kind string `json:"kind"`
				} `json:"error"`
			}
			req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
			req.Equal(tc.kind, body.Error.Kind)
		})
	}
}
