package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/practicalwork/library-server/internal/domain"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string // User's search query

	// Filters
	Category        *domain.BookCategory
	ExcludeArchived bool

	// Pagination
	Limit  int
	Offset int
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Authors    string            `json:"authors,omitempty"`
	Category   string            `json:"category,omitempty"`
	Status     string            `json:"status,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search executes a search query ordered by relevance.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = 20
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	searchRequest.SortBy([]string{"-_score", "id"})
	searchRequest.Highlight = bleve.NewHighlight()
	searchRequest.Highlight.AddField("title")
	searchRequest.Highlight.AddField("authors")
	searchRequest.Fields = []string{"title", "authors", "category", "status"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if v, ok := hit.Fields["title"].(string); ok {
			searchHit.Title = v
		}
		if v, ok := hit.Fields["authors"].(string); ok {
			searchHit.Authors = v
		}
		if v, ok := hit.Fields["category"].(string); ok {
			searchHit.Category = v
		}
		if v, ok := hit.Fields["status"].(string); ok {
			searchHit.Status = v
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		titleMatch := bleve.NewMatchQuery(q)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		authorsMatch := bleve.NewMatchQuery(q)
		authorsMatch.SetField("authors")
		authorsMatch.SetBoost(2.0)

		descMatch := bleve.NewMatchQuery(q)
		descMatch.SetField("description")

		// Typo tolerance on the title
		fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)

		textQueries := []query.Query{titleMatch, authorsMatch, descMatch, fuzzyQuery}

		// Prefix query for autocomplete (minimum 2 chars)
		if len(q) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(q))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.Category != nil {
		cq := bleve.NewTermQuery(string(*params.Category))
		cq.SetField("category")
		queries = append(queries, cq)
	}

	if len(queries) == 0 {
		queries = append(queries, bleve.NewMatchAllQuery())
	}

	if params.ExcludeArchived {
		archived := bleve.NewTermQuery(string(domain.BookArchived))
		archived.SetField("status")
		bq := bleve.NewBooleanQuery()
		bq.AddMust(queries...)
		bq.AddMustNot(archived)
		return bq
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}
