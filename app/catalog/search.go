package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

const (
	// fuzzyThreshold is minimum score for fuzzy matching
	fuzzyThreshold = 0.3
	// maxSearchResults is maximum number of results to return
	maxSearchResults = 10
)

// Match is a single component search result
type Match struct {
	Category  string  `json:"category"`
	Component string  `json:"component"`
	Score     float64 `json:"score"`
}

// SearchComponents finds components whose name matches the query, best matches first
func (c *Catalog) SearchComponents(ctx context.Context, query, ref string) ([]Match, error) {
	normalizedQuery := strings.ToLower(strings.TrimSpace(query))
	if normalizedQuery == "" {
		return []Match{}, nil
	}

	byCategory, err := c.ListAllComponentsByCategory(ctx, ref)
	if err != nil {
		return nil, err
	}

	matches := []Match{}
	for category, components := range byCategory {
		for _, component := range components {
			if score := calculateScore(normalizedQuery, strings.ToLower(component)); score > 0 {
				matches = append(matches, Match{Category: category, Component: component, Score: score})
			}
		}
	}

	// sort by score descending, then by name for stable output across map iteration
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Component != matches[j].Component {
			return matches[i].Component < matches[j].Component
		}
		return matches[i].Category < matches[j].Category
	})

	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}
	return matches, nil
}

// calculateScore computes match score of a lowercased component name
func calculateScore(query, name string) float64 {
	if name == query {
		return 1.0
	}

	// substring match, scored by how much of the name is the query
	if strings.Contains(name, query) {
		return 0.8 * (float64(len(query)) / float64(len(name)))
	}

	matches := fuzzy.Find(query, []string{name})
	if len(matches) > 0 && matches[0].Score > 0 {
		// sahilm/fuzzy returns higher scores for better matches (up to ~100 for perfect match)
		fuzzyScore := float64(matches[0].Score) / 100.0
		if fuzzyScore > 1.0 {
			fuzzyScore = 1.0
		}
		if fuzzyScore >= fuzzyThreshold {
			return fuzzyScore * 0.7
		}
	}

	return 0
}
