package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/pkg/errors"
	"github.com/qubic/chains-status/domain"
)

// Client keeps a history of the published chain states, one document per chain and generation.
type Client struct {
	esClient  *elasticsearch.Client
	indexName string
}

func NewClient(esClient *elasticsearch.Client, indexName string) *Client {
	return &Client{
		esClient:  esClient,
		indexName: indexName,
	}
}

type EsDocument struct {
	Id      string
	Payload []byte
}

type chainStatusDocument struct {
	Generation  uint64    `json:"generation"`
	PublishedAt time.Time `json:"publishedAt"`
	ChainId     string    `json:"chainId"`
	ShortName   string    `json:"shortName"`
	LatestBlock int64     `json:"latestBlock"`
	State       string    `json:"state"`
	Index       int       `json:"i"`
}

func (c *Client) Publish(ctx context.Context, snapshot *domain.Snapshot) error {
	documents, err := createDocuments(snapshot)
	if err != nil {
		return errors.Wrap(err, "creating documents")
	}
	return c.BulkIndex(ctx, documents)
}

func createDocuments(snapshot *domain.Snapshot) ([]*EsDocument, error) {
	documents := make([]*EsDocument, 0, len(snapshot.Chains))
	for _, status := range snapshot.Chains {
		payload, err := json.Marshal(chainStatusDocument{
			Generation:  snapshot.Generation,
			PublishedAt: snapshot.PublishedAt,
			ChainId:     status.ID,
			ShortName:   status.ShortName,
			LatestBlock: status.LatestBlock,
			State:       status.State(),
			Index:       status.Index,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "marshalling status of chain [%s]", status.ID)
		}
		documents = append(documents, &EsDocument{
			Id:      fmt.Sprintf("%s-%d", status.ID, snapshot.Generation),
			Payload: payload,
		})
	}
	return documents, nil
}

func (c *Client) BulkIndex(ctx context.Context, data []*EsDocument) error {
	start := time.Now().UnixMilli()
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:      c.indexName,
		Client:     c.esClient,
		NumWorkers: min(runtime.NumCPU(), 2), // one request per generation is enough
	})
	if err != nil {
		return errors.Wrap(err, "Error creating bulk indexer")
	}

	for _, d := range data {
		item := esutil.BulkIndexerItem{
			Action:     "index", // creates or replaces
			DocumentID: d.Id,
			Body:       bytes.NewReader(d.Payload),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				msg := "Error indexing document"
				if err != nil {
					log.Printf("%s [%s]: %s: [%s]", msg, d.Id, string(d.Payload), err)
				} else {
					log.Printf("%s [%s]: %s: [%s: %s]", msg, d.Id, string(d.Payload), res.Error.Type, res.Error.Reason)
				}
			},
		}
		err = bi.Add(ctx, item)
		if err != nil {
			return errors.Wrapf(err, "adding document [%s]", d.Id)
		}
	}

	err = bi.Close(ctx)
	if err != nil {
		return errors.Wrap(err, "Error closing bulk indexer")
	}

	biStats := bi.Stats()
	if biStats.NumFailed > 0 {
		return errors.Errorf("%d errors indexing [%d] documents", biStats.NumFailed, biStats.NumFlushed)
	}
	log.Printf("Indexed %d documents in %dms.", biStats.NumFlushed, time.Now().UnixMilli()-start)
	return nil
}
