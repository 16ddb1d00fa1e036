package subgraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/qubic/chains-status/domain"
	"github.com/tidwall/gjson"
)

var (
	ErrUnknownChain = errors.New("no subgraph configured for chain")
	ErrNoBlock      = errors.New("subgraph returned no block number")
)

const metaQuery = `{"query":"{ _meta { block { number } hasIndexingErrors } }"}`

// Client queries the indexing status of the configured chain subgraphs.
type Client struct {
	httpClient *http.Client
	lock       sync.RWMutex
	endpoints  map[string]string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  make(map[string]string),
	}
}

// Configure replaces the subgraph endpoints with the ones of the given chains. Disabled chains and chains
// without subgraph are not queryable.
func (c *Client) Configure(chains []domain.Chain) {
	endpoints := make(map[string]string, len(chains))
	for _, chain := range chains {
		if chain.Disabled || chain.Subgraph == "" {
			continue
		}
		endpoints[chain.ID] = chain.Subgraph
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.endpoints = endpoints
	log.Printf("[INFO] subgraph client configured for [%d] chains.", len(endpoints))
}

// Initialized returns true if at least one subgraph endpoint is configured.
func (c *Client) Initialized() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.endpoints) > 0
}

func (c *Client) QuerySyncStatus(ctx context.Context, chainID string) (*domain.SyncSnapshot, error) {
	c.lock.RLock()
	endpoint, ok := c.endpoints[chainID]
	c.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chain [%s]: %w", chainID, ErrUnknownChain)
	}

	body, err := c.post(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("querying subgraph of chain [%s]: %w", chainID, err)
	}

	if errs := gjson.GetBytes(body, "errors"); errs.Exists() && len(errs.Array()) > 0 {
		return nil, fmt.Errorf("subgraph of chain [%s] returned errors: %s", chainID, errs.Array()[0].Get("message").String())
	}
	if gjson.GetBytes(body, "data._meta.hasIndexingErrors").Bool() {
		log.Printf("[WARN] subgraph of chain [%s] has indexing errors.", chainID)
	}

	number := gjson.GetBytes(body, "data._meta.block.number")
	if !number.Exists() || number.Type != gjson.Number {
		return nil, fmt.Errorf("chain [%s]: %w", chainID, ErrNoBlock)
	}
	return &domain.SyncSnapshot{LatestBlock: number.Int()}, nil
}

func (c *Client) post(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(metaQuery)))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling subgraph: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			log.Printf("Error closing body: %v", err)
		}
	}(res.Body)

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status [%s]", res.Status)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json response")
	}
	return body, nil
}
