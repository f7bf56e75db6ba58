package profile_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/alovak/cardprofile/profile"
	"github.com/alovak/cardprofile/profile/models"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T) string {
	t.Helper()
	t.Setenv("ALLOW_MEM_BACKEND_FOR_TESTS", "true")

	config := profile.DefaultConfig()
	config.HTTPAddr = "127.0.0.1:0"
	config.StoreBackend = "mem"
	config.PaymentDelay = time.Millisecond
	config.LoadTimeout = time.Second

	app := profile.NewApp(discardLogger(), config)
	require.NoError(t, app.Start())
	t.Cleanup(app.Shutdown)

	return "http://" + app.Addr
}

func doRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeSnapshot(t *testing.T, resp *http.Response) profile.Snapshot {
	t.Helper()
	defer resp.Body.Close()
	var snap profile.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func TestAPI_CardLifecycle(t *testing.T) {
	baseURL := setupApp(t)

	// fresh deployment has no card
	resp := doRequest(t, http.MethodGet, baseURL+"/card", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	require.Equal(t, profile.StateIdleEmpty, snap.State)
	require.Nil(t, snap.Record)

	// nothing to edit yet
	resp = doRequest(t, http.MethodPost, baseURL+"/card/form", map[string]string{"mode": "edit"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// open the create form
	resp = doRequest(t, http.MethodPost, baseURL+"/card/form", map[string]string{"mode": "create"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	require.Equal(t, profile.StateFormCreate, snap.State)
	require.Equal(t, "Business", snap.Draft.CardType)

	// submitting a blank form reports field errors and stays on the form
	resp = doRequest(t, http.MethodPost, baseURL+"/card", models.Draft{})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	require.Equal(t, profile.StateFormCreate, snap.State)
	require.Contains(t, snap.FieldErrors, "fullName")
	require.Contains(t, snap.FieldErrors, "email")

	// a valid submit saves the card with a masked number
	resp = doRequest(t, http.MethodPost, baseURL+"/card", validDraft())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	require.Equal(t, profile.StateIdlePresent, snap.State)
	require.Equal(t, "**** **** **** 1111", snap.Record.CardNumber)
	require.Equal(t, 100.50, snap.Record.Balance)
	require.Equal(t, models.NoticeSaved, snap.Notice.Kind)

	// partial update touches one field and keeps the rest
	resp = doRequest(t, http.MethodPatch, baseURL+"/card", map[string]any{"company": "Initech"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	require.Equal(t, "Initech", snap.Record.Company)
	require.Equal(t, "Jane Doe", snap.Record.FullName)

	// delete needs explicit confirmation
	resp = doRequest(t, http.MethodDelete, baseURL+"/card", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodDelete, baseURL+"/card?confirm=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	require.Equal(t, profile.StateIdleEmpty, snap.State)
	require.Equal(t, models.NoticeDeleted, snap.Notice.Kind)

	// a reload confirms the store is empty again
	resp = doRequest(t, http.MethodPost, baseURL+"/card/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	require.Equal(t, profile.StateIdleEmpty, snap.State)
	require.Nil(t, snap.Record)
}

func TestAPI_CancelForm(t *testing.T) {
	baseURL := setupApp(t)

	resp := doRequest(t, http.MethodPost, baseURL+"/card/form", map[string]string{"mode": "create"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodDelete, baseURL+"/card/form", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	require.Equal(t, profile.StateIdleEmpty, snap.State)
	require.Nil(t, snap.Draft)
}

func TestAPI_PatchWithoutFields(t *testing.T) {
	baseURL := setupApp(t)

	resp := doRequest(t, http.MethodPost, baseURL+"/card/form", map[string]string{"mode": "create"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doRequest(t, http.MethodPost, baseURL+"/card", validDraft())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodPatch, baseURL+"/card", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_Payments(t *testing.T) {
	baseURL := setupApp(t)

	resp := doRequest(t, http.MethodPost, baseURL+"/card/form", map[string]string{"mode": "create"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doRequest(t, http.MethodPost, baseURL+"/card", validDraft())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// an invalid amount is rejected up front
	resp = doRequest(t, http.MethodPost, baseURL+"/card/payments", map[string]string{"amount": "-5", "method": "esewa"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// a successful esewa payment tops up the balance
	resp = doRequest(t, http.MethodPost, baseURL+"/card/payments", map[string]string{"amount": "20", "method": "esewa"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Result struct {
			Method    string `json:"method"`
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"result"`
		Snapshot profile.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()

	require.Equal(t, "esewa", body.Result.Method)
	require.NotEmpty(t, body.Result.Reference)
	require.Equal(t, 120.50, body.Snapshot.Record.Balance)
	require.Equal(t, models.NoticePayment, body.Snapshot.Notice.Kind)
}

func TestAPI_Health(t *testing.T) {
	baseURL := setupApp(t)

	resp := doRequest(t, http.MethodGet, baseURL+"/-/live", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, baseURL+"/-/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
