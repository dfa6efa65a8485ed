package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-cli/internal/model"
)

func TestLoginValidationSkipsRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, "")

	_, err := c.Login(context.Background(), LoginRequest{Username: "  ", Password: "secret"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "username", verr.Field)
	assert.False(t, called)
}

func TestRegisterRejectsBadEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}, "")

	_, err := c.Register(context.Background(), RegisterRequest{Username: "bob", Email: "not-an-email", Password: "pw"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Field)
	assert.Equal(t, "email 邮箱格式不正确", UserMessage(err))
}

func TestLoginDecodesTokenAndUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login/", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "secret", body["password"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"token":"T1","user":{"id":1,"username":"alice"}}`)
	}, "")

	res, err := c.Login(context.Background(), LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "T1", res.Token)
	assert.Equal(t, &model.User{ID: 1, Username: "alice"}, res.User)
}

func TestSendMessageAndUploadPaths(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/threads/7/send_message/":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "what is due?", body["message"])
			io.WriteString(w, `{
				"user_message":{"id":10,"role":"user","content":"what is due?","sources":[]},
				"assistant_message":{"id":11,"role":"assistant","content":"$40","sources":[{"content":"Total: $40"}]}
			}`)
		case "/threads/7/upload_document/":
			io.WriteString(w, `{"updated_message_id":42,"thread_title":"Invoice.pdf Chat"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, "T1")

	pair, err := c.SendMessage(context.Background(), 7, "what is due?")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, pair.UserMessage.Role)
	assert.Equal(t, model.RoleAssistant, pair.AssistantMessage.Role)
	assert.Equal(t, "Total: $40", pair.AssistantMessage.Sources[0].Content)

	form, err := NewFileFormFromReader("file", "Invoice.pdf", http.NoBody)
	require.NoError(t, err)
	res, err := c.UploadDocument(context.Background(), 7, form)
	require.NoError(t, err)
	require.NotNil(t, res.UpdatedMessageID)
	assert.Equal(t, int64(42), *res.UpdatedMessageID)
	require.NotNil(t, res.ThreadTitle)
	assert.Equal(t, "Invoice.pdf Chat", *res.ThreadTitle)
}
