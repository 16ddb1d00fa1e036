package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/qubic/chains-status/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeStatusProvider struct {
	snapshot *domain.Snapshot
}

func (f *FakeStatusProvider) Current() *domain.Snapshot {
	return f.snapshot
}

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Generation:  4,
		PublishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Chains: domain.StatusList{
			{ID: "ethereum", ShortName: "ETH", Image: "/eth.png", LatestBlock: 19000000, Synced: true, Index: 0},
			{ID: "bsc", ShortName: "BNB", Disabled: true, LatestBlock: -1, Index: 1},
			{ID: "polygon", ShortName: "MATIC", LatestBlock: 500, Index: 2},
			{ID: "fantom", ShortName: "FTM", LatestBlock: -1, Index: 3},
		},
	}
}

func TestHandler_GetStatus(t *testing.T) {
	handler := NewHandler(&FakeStatusProvider{snapshot: testSnapshot()}, "")
	recorder := httptest.NewRecorder()

	handler.GetStatus(recorder, httptest.NewRequest(http.MethodGet, "/v1/chains/status", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	var response StatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, uint64(4), response.Generation)
	require.Len(t, response.Chains, 4)
	assert.Equal(t, ChainStatusResponse{Id: "ethereum", ShortName: "ETH", Image: "/eth.png", LatestBlock: 19000000, State: "synced"}, response.Chains[0])
	assert.Equal(t, "disabled", response.Chains[1].State)
	assert.Equal(t, "unsynced", response.Chains[2].State)
}

func TestHandler_GivenNoSnapshot_ThenServiceUnavailable(t *testing.T) {
	handler := NewHandler(&FakeStatusProvider{}, "")

	recorder := httptest.NewRecorder()
	handler.GetStatus(recorder, httptest.NewRequest(http.MethodGet, "/v1/chains/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	recorder = httptest.NewRecorder()
	handler.GetAlerts(recorder, httptest.NewRequest(http.MethodGet, "/v1/chains/alerts", nil))
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestHandler_GetAlerts(t *testing.T) {
	handler := NewHandler(&FakeStatusProvider{snapshot: testSnapshot()}, "https://connextscan.io/")
	recorder := httptest.NewRecorder()

	handler.GetAlerts(recorder, httptest.NewRequest(http.MethodGet, "/v1/chains/alerts?address=0xabc", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	var response AlertsResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, []string{"MATIC", "FTM"}, response.Unsynced)
	assert.Contains(t, response.Message, "MATIC, FTM subgraphs is not synced")
	assert.Equal(t, "https://connextscan.io/address/0xabc", response.ExplorerUrl)
}

func TestHandler_GetAlerts_GivenAllSynced_ThenNoMessage(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Chains = snapshot.Chains[:2]
	handler := NewHandler(&FakeStatusProvider{snapshot: snapshot}, "https://connextscan.io")
	recorder := httptest.NewRecorder()

	handler.GetAlerts(recorder, httptest.NewRequest(http.MethodGet, "/v1/chains/alerts", nil))

	var response AlertsResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Empty(t, response.Unsynced)
	assert.Empty(t, response.Message)
	assert.Empty(t, response.ExplorerUrl)
}

func TestHandler_AlertMessage(t *testing.T) {
	assert.Equal(t, "You may face some delay transfers due to the ETH subgraph is not synced. However, no worry at all - your funds are SAFE.",
		alertMessage([]string{"ETH"}))
}

func TestHandler_ExplorerLink(t *testing.T) {
	handler := NewHandler(nil, "https://connextscan.io")
	assert.Equal(t, "https://connextscan.io", handler.explorerLink(""))
	assert.Equal(t, "https://connextscan.io/address/0x1", handler.explorerLink("0x1"))
	assert.Empty(t, NewHandler(nil, "").explorerLink("0x1"))
	assert.Equal(t, "https://connextscan.io/address/0x1%2F..%2Fadmin%3Fx=1", handler.explorerLink("0x1/../admin?x=1"))
}

func TestHandler_GetHealth(t *testing.T) {
	recorder := httptest.NewRecorder()
	NewHandler(nil, "").GetHealth(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"UP"}`, recorder.Body.String())
}
