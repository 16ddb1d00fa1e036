package elastic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/qubic/chains-status/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Generation:  9,
		PublishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Chains: domain.StatusList{
			{ID: "ethereum", ShortName: "ETH", LatestBlock: 19000000, Synced: true, Index: 0},
			{ID: "bsc", ShortName: "BNB", Disabled: true, LatestBlock: -1, Index: 1},
			{ID: "polygon", ShortName: "MATIC", LatestBlock: -1, Index: 2},
		},
	}
}

func TestClient_CreateDocuments(t *testing.T) {
	documents, err := createDocuments(testSnapshot())
	require.NoError(t, err)
	require.Len(t, documents, 3)

	assert.Equal(t, "ethereum-9", documents[0].Id)
	assert.JSONEq(t, `{"generation":9,"publishedAt":"2024-05-01T12:00:00Z","chainId":"ethereum","shortName":"ETH","latestBlock":19000000,"state":"synced","i":0}`,
		string(documents[0].Payload))
	assert.Contains(t, string(documents[1].Payload), `"state":"disabled"`)
	assert.Contains(t, string(documents[2].Payload), `"state":"unsynced"`)
}

func TestClient_Publish(t *testing.T) {
	var lock sync.Mutex
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/_bulk") {
			_, _ = w.Write([]byte(`{}`))
			return
		}

		var items []string
		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			var action map[string]map[string]any
			if json.Unmarshal(scanner.Bytes(), &action) == nil {
				if meta, ok := action["index"]; ok {
					lock.Lock()
					ids = append(ids, meta["_id"].(string))
					lock.Unlock()
					items = append(items, fmt.Sprintf(`{"index":{"_id":%q,"status":201}}`, meta["_id"]))
				}
			}
		}
		_, _ = fmt.Fprintf(w, `{"took":1,"errors":false,"items":[%s]}`, strings.Join(items, ","))
	}))
	defer server.Close()

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	client := NewClient(esClient, "chains-status-history")

	err = client.Publish(context.Background(), testSnapshot())
	require.NoError(t, err)

	lock.Lock()
	defer lock.Unlock()
	assert.ElementsMatch(t, []string{"ethereum-9", "bsc-9", "polygon-9"}, ids)
}
