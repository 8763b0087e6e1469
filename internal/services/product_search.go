package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const productsIndex = "products"

// ProductSearcher returns the ids of products matching a free-text query, best match first.
type ProductSearcher interface {
	SearchProductIDs(ctx context.Context, query string, limit int) ([]string, error)
}

// ElasticProductSearch runs a multi_match query on name, description and brand.
type ElasticProductSearch struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticProductSearch(client *elasticsearch.Client) *ElasticProductSearch {
	return &ElasticProductSearch{client: client, index: productsIndex}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string `json:"_id"`
			Source struct {
				ID string `json:"id"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticProductSearch) SearchProductIDs(ctx context.Context, query string, limit int) ([]string, error) {
	var buf bytes.Buffer
	q := map[string]interface{}{
		"size":    limit,
		"_source": []string{"id"},
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"name^2", "description", "brand"},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("elastic: encode query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("elastic: search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.New("elastic: search failed: " + res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("elastic: decode response: %w", err)
	}

	ids := make([]string, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id := hit.Source.ID
		if id == "" {
			id = hit.ID
		}
		ids = append(ids, id)
	}
	return ids, nil
}
