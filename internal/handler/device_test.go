package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresafe/foresafe/internal/model"
)

func TestDeviceLinkLogsInAndSyncsStore(t *testing.T) {
	env := setupEnv(t)
	env.seed(t, []string{"FS-0002"}, map[string]string{"FS-0002": "919876543210"})

	rec := env.postJSON(t, "/api/devices/link", `{"tagId":"fs-0002","subscriptionId":"sub-123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "FS-0002", body["tagId"])
	assert.Equal(t, true, body["linked"])
	assert.Equal(t, true, body["synced"])

	call, sent := env.push.lastCall()
	assert.Equal(t, "PATCH /apps/app-1/subscriptions/sub-123/user/identity", call)
	assert.Equal(t, map[string]any{"external_id": "FS-0002"}, sent["identity"])

	stored, err := env.tags.Get(context.Background(), "FS-0002")
	require.NoError(t, err)
	require.NotNil(t, stored.PushToken)
	assert.Equal(t, "sub-123", *stored.PushToken)
}

func TestDeviceLinkWithoutSubscriptionStoresMarker(t *testing.T) {
	env := setupEnv(t)
	env.seed(t, []string{"FS-0002"}, map[string]string{"FS-0002": "919876543210"})

	rec := env.postJSON(t, "/api/devices/link", `{"tagId":"FS-0002"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.push.callCount())

	stored, err := env.tags.Get(context.Background(), "FS-0002")
	require.NoError(t, err)
	require.NotNil(t, stored.PushToken)
	assert.Equal(t, model.LinkedViaPush, *stored.PushToken)
}

func TestDeviceLinkRejectsForeignPrefix(t *testing.T) {
	env := setupEnv(t)

	rec := env.postJSON(t, "/api/devices/link", `{"tagId":"XX-0001","subscriptionId":"sub-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid Tag ID. It must start with FS-", decodeBody(t, rec)["error"])
	assert.Zero(t, env.push.callCount())
}

func TestDeviceSetPush(t *testing.T) {
	env := setupEnv(t)
	env.seed(t, []string{"FS-0001", "FS-0002"}, map[string]string{"FS-0002": "919876543210"})

	rec := env.do(t, http.MethodPut, "/api/devices/push", "application/json", `{"tagId":"FS-0002"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "enabled is required")

	rec = env.do(t, http.MethodPut, "/api/devices/push", "application/json", `{"tagId":"FS-0002","subscriptionId":"sub-1","enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decodeBody(t, rec)["pushEnabled"])

	call, sent := env.push.lastCall()
	assert.Equal(t, "PATCH /apps/app-1/subscriptions/sub-1", call)
	assert.Equal(t, map[string]any{"enabled": false}, sent["subscription"])

	stored, err := env.tags.Get(context.Background(), "FS-0002")
	require.NoError(t, err)
	assert.False(t, stored.PushEnabled)

	// Unregistered tags report the reverted state.
	rec = env.do(t, http.MethodPut, "/api/devices/push", "application/json", `{"tagId":"FS-0001","enabled":false}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	state := body["state"].(map[string]any)
	assert.Equal(t, true, state["pushEnabled"])

	rec = env.do(t, http.MethodPut, "/api/devices/push", "application/json", `{"tagId":"FS-0404","enabled":false}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Tag FS-0404 not found.", decodeBody(t, rec)["error"])
}

func TestDeviceSetPushCollaboratorFailureReverts(t *testing.T) {
	env := setupEnv(t)
	env.seed(t, []string{"FS-0002"}, map[string]string{"FS-0002": "919876543210"})
	env.push.failWith = http.StatusInternalServerError

	rec := env.do(t, http.MethodPut, "/api/devices/push", "application/json", `{"tagId":"FS-0002","subscriptionId":"sub-1","enabled":false}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["state"].(map[string]any)["pushEnabled"])

	stored, err := env.tags.Get(context.Background(), "FS-0002")
	require.NoError(t, err)
	assert.True(t, stored.PushEnabled, "store must not change when the collaborator fails")
}

func TestDeviceUnlink(t *testing.T) {
	env := setupEnv(t)

	rec := env.postJSON(t, "/api/devices/unlink", `{"tagId":"FS-0002"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decodeBody(t, rec)["linked"])

	call, _ := env.push.lastCall()
	assert.Equal(t, "DELETE /apps/app-1/users/by/external_id/FS-0002/identity/external_id", call)
}
