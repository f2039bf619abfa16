package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticSink indexe les événements pour la recherche admin.
type ElasticSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticSink(client *elasticsearch.Client, index string) *ElasticSink {
	return &ElasticSink{client: client, index: index}
}

func (s *ElasticSink) Name() string { return "elasticsearch" }

func (s *ElasticSink) Write(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: e.ID,
		Body:       bytes.NewReader(data),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("envoi Elastic: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("Elastic a renvoyé une erreur: %s", res.String())
	}
	return nil
}

// SearchQuery filtre la recherche d'événements.
type SearchQuery struct {
	CreatorID string
	EntityID  string
	Type      string
	Size      int
}

// Searcher recherche les événements indexés.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]Event, error)
}

// BuildSearchBody construit la requête bool/filter triée par date décroissante.
func BuildSearchBody(q SearchQuery) map[string]any {
	var filters []map[string]any
	if q.CreatorID != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"creator_id": q.CreatorID}})
	}
	if q.EntityID != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"entity_id": q.EntityID}})
	}
	if q.Type != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"type": q.Type}})
	}
	size := q.Size
	if size <= 0 || size > 500 {
		size = 100
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(filters) > 0 {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}
	return map[string]any{
		"size":  size,
		"query": query,
		"sort":  []map[string]any{{"occurred_at": map[string]any{"order": "desc"}}},
	}
}

func (s *ElasticSink) Search(ctx context.Context, q SearchQuery) ([]Event, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(BuildSearchBody(q)); err != nil {
		return nil, fmt.Errorf("erreur encodage requête: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("erreur requête Elastic: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.New("index non trouvé ou vide")
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("erreur décodage JSON: %w", err)
	}

	out := make([]Event, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
