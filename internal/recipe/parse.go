package recipe

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse extracts the recipe record embedded in a detail page. It returns
// nil when the document carries no JSON-LD object typed "Recipe"; callers
// must treat that as "no recipe content", not an error. Malformed script
// blocks and malformed individual fields are skipped, never fatal.
func Parse(html []byte, requestedURL string, recipeID int64) *Recipe {
	obj := findRecipeObject(html)
	if obj == nil {
		return nil
	}

	r := &Recipe{
		RecipeID:    recipeID,
		URL:         requestedURL,
		Name:        stringField(obj["name"]),
		Description: stringField(obj["description"]),
		HeroImage:   firstImageURL(obj["image"]),
		Cuisine:     extractCuisine(obj["recipeCuisine"]),
		Ingredients: extractIngredients(obj["recipeIngredient"]),
		Steps:       extractSteps(obj["recipeInstructions"]),
		Comments:    extractComments(obj["comment"]),
	}
	if u, ok := obj["url"].(string); ok {
		r.URL = u
	}
	r.AuthorName, r.AuthorURL = extractAuthor(obj["author"])
	r.KeywordsRaw, r.Keywords = extractKeywords(obj["keywords"])
	r.BookmarkCount, r.LikeCount, r.CommentCount = extractCounts(obj["interactionStatistic"])
	if s, ok := obj["datePublished"].(string); ok {
		r.DatePublished = parseDateTime(s)
	}
	if s, ok := obj["dateModified"].(string); ok {
		r.DateModified = parseDateTime(s)
	}
	return r
}

// findRecipeObject scans every ld+json block and returns the first
// candidate object whose @type is, or includes, "Recipe". Objects nested
// in an @graph collection are candidates in their own right and are
// considered before their container.
func findRecipeObject(html []byte) map[string]any {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	var candidates []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return
		}
		for _, v := range asList(parsed) {
			obj, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if graph, ok := obj["@graph"].([]any); ok {
				for _, g := range graph {
					if member, ok := g.(map[string]any); ok {
						candidates = append(candidates, member)
					}
				}
			}
			candidates = append(candidates, obj)
		}
	})

	for _, obj := range candidates {
		if isRecipeType(obj["@type"]) {
			return obj
		}
	}
	return nil
}

func isRecipeType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Recipe"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}
