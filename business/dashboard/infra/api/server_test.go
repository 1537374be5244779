package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dashboardApp "github.com/fd1az/savvy-farm/business/dashboard/app"
	"github.com/fd1az/savvy-farm/business/dashboard/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/asset"
	"github.com/fd1az/savvy-farm/internal/logger"
)

var svf = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type fakeViews struct {
	view dashboardApp.View
}

func (f *fakeViews) View() dashboardApp.View { return f.view }

func (f *fakeViews) LookupTokenByAddress(addr string) (domain.Token, bool) {
	return domain.LookupTokenByAddress(f.view.Tokens, addr)
}

type fakeActions struct {
	mu       sync.Mutex
	requests []domain.ActionRequest
	err      error
	actions  map[string]domain.Action
}

func (f *fakeActions) Dispatch(_ context.Context, req domain.ActionRequest) (domain.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.Action{}, f.err
	}
	a := domain.Action{ID: "a1", Token: common.HexToAddress(req.Token), Kind: req.Kind, State: domain.ActionSubmitted}
	f.actions[a.ID] = a
	return a, nil
}

func (f *fakeActions) MaxAmount(kind domain.ActionKind, token string) (string, error) {
	if !strings.EqualFold(token, svf.Hex()) {
		return "", apperror.NotFound(apperror.CodeTokenNotFound, token)
	}
	if kind == domain.ActionUnstake {
		return "42.5", nil
	}
	return "0", nil
}

func (f *fakeActions) Action(id string) (domain.Action, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actions[id]
	return a, ok
}

func (f *fakeActions) Actions() []domain.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Action, 0, len(f.actions))
	for _, a := range f.actions {
		out = append(out, a)
	}
	return out
}

func newTestServer(t *testing.T) (*Server, *fakeActions, *httptest.Server) {
	t.Helper()

	staked, err := asset.ParseUnits("42.5", asset.TokenDecimals)
	require.NoError(t, err)

	views := &fakeViews{view: dashboardApp.View{
		Ready:      true,
		Generation: 1,
		Tokens: []domain.Token{{
			Address: svf,
			Name:    "SVF",
			Loaded:  true,
			Staker:  domain.StakerView{StakingBalance: staked},
		}},
	}}
	actions := &fakeActions{actions: make(map[string]domain.Action)}

	s := NewServer(Config{}, views, actions, logger.New(io.Discard, logger.LevelError, "test", nil))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Stop()
		srv.Close()
	})
	return s, actions, srv
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code
}

func TestServer_Tokens(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/tokens")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ready":true`)
	assert.Contains(t, string(data), `"stakingBalance":"42.5"`)
}

func TestServer_TokenLookup(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/tokens/" + strings.ToLower(svf.Hex()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	missing, err := http.Get(srv.URL + "/api/tokens/0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, string(apperror.CodeTokenNotFound), errorCode(t, missing))
}

func TestServer_MaxAmount(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/tokens/" + svf.Hex() + "/max?action=unstake")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "42.5", body["amount"])
	assert.Equal(t, "unstake", body["action"])

	bad, err := http.Get(srv.URL + "/api/tokens/" + svf.Hex() + "/max?action=borrow")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, string(apperror.CodeValidationError), errorCode(t, bad))
}

func TestServer_DispatchAccepted(t *testing.T) {
	_, actions, srv := newTestServer(t)

	body := `{"token":"` + svf.Hex() + `","kind":"stake","amount":"1.5"}`
	resp, err := http.Post(srv.URL+"/api/actions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, actions.requests, 1)
	assert.Equal(t, domain.ActionRequest{Token: svf.Hex(), Kind: domain.ActionStake, Amount: "1.5"}, actions.requests[0])

	got, err := http.Get(srv.URL + "/api/actions/a1")
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)
}

func TestServer_DispatchErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   apperror.Code
	}{
		{
			name:       "malformed body",
			body:       `{"token":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperror.CodeInvalidInput,
		},
		{
			name:       "unknown field",
			body:       `{"token":"x","value":"1"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperror.CodeInvalidInput,
		},
		{
			name:       "invalid amount",
			body:       `{"token":"x","kind":"stake","amount":"abc"}`,
			err:        apperror.New(apperror.CodeInvalidAmount, apperror.WithContext(`"abc"`)),
			wantStatus: http.StatusBadRequest,
			wantCode:   apperror.CodeInvalidAmount,
		},
		{
			name:       "in progress",
			body:       `{"token":"x","kind":"stake","amount":"1"}`,
			err:        apperror.Conflict(apperror.CodeActionInProgress, "stake"),
			wantStatus: http.StatusConflict,
			wantCode:   apperror.CodeActionInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, actions, srv := newTestServer(t)
			actions.err = tt.err

			resp, err := http.Post(srv.URL+"/api/actions", "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, string(tt.wantCode), errorCode(t, resp))
		})
	}
}

func TestServer_ActionNotFound(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/actions/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(apperror.CodeActionNotFound), errorCode(t, resp))
}

func TestServer_CORSPreflight(t *testing.T) {
	_, _, srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/actions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_StreamSendsViewThenUpdates(t *testing.T) {
	s, _, srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/stream", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var first Event
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, "view", first.Type)

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.UpdateAction(domain.Action{ID: "a9", Kind: domain.ActionUnstake, State: domain.ActionMining})

	var next Event
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &next))
	assert.Equal(t, "action", next.Type)
	assert.Equal(t, "a9", next.Data.(map[string]any)["id"])
}
