package recipe

import (
	"strconv"
	"strings"
	"time"

	"github.com/bepdata/recipe-crawler/internal/hash"
)

// asList normalizes the singular-vs-list ambiguity of JSON-LD values.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{v}
	}
}

// stringField returns the value only when it is a plain string.
func stringField(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

// trimmedString returns the trimmed value when it is a non-empty string.
func trimmedString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// firstImageURL unwraps the image representations seen in the wild: a
// bare URL string, a list of any of these, or an object carrying "url" or
// "@id". Returns the first resolvable URL.
func firstImageURL(v any) *string {
	switch t := v.(type) {
	case string:
		return trimmedString(t)
	case []any:
		for _, item := range t {
			if u := firstImageURL(item); u != nil {
				return u
			}
		}
	case map[string]any:
		if u := trimmedString(t["url"]); u != nil {
			return u
		}
		if u := trimmedString(t["@id"]); u != nil {
			return u
		}
	}
	return nil
}

// intFromAny accepts JSON numbers and decimal strings.
func intFromAny(v any) *int {
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

// extractCounts scans the interactionStatistic list and classifies each
// entry by substring match on its interaction type. The last matching
// entry per category wins; entries with missing types or non-numeric
// counts are dropped.
func extractCounts(v any) (bookmark, like, comment *int) {
	for _, item := range asList(v) {
		stat, ok := item.(map[string]any)
		if !ok {
			continue
		}
		count := intFromAny(stat["userInteractionCount"])

		var kind string
		switch it := stat["interactionType"].(type) {
		case map[string]any:
			if s, ok := it["@type"].(string); ok && s != "" {
				kind = s
			} else if s, ok := it["name"].(string); ok {
				kind = s
			}
		case string:
			kind = it
		}

		if kind == "" || count == nil {
			continue
		}
		switch {
		case strings.Contains(kind, "BookmarkAction"):
			bookmark = count
		case strings.Contains(kind, "LikeAction"):
			like = count
		case strings.Contains(kind, "CommentAction"):
			comment = count
		}
	}
	return bookmark, like, comment
}

// extractAuthor reads the first author entry. An object yields (name,
// url-or-@id); a bare string yields (string, nil).
func extractAuthor(v any) (name, url *string) {
	for _, item := range asList(v) {
		switch a := item.(type) {
		case map[string]any:
			name = stringField(a["name"])
			url = stringField(a["url"])
			if url == nil {
				url = stringField(a["@id"])
			}
			return name, url
		case string:
			return &a, nil
		}
	}
	return nil, nil
}

// extractKeywords handles both shapes: a list yields the joined raw form,
// a string is preserved verbatim as raw and split on "," and ";".
func extractKeywords(v any) (raw *string, keywords []string) {
	switch t := v.(type) {
	case []any:
		var cleaned []string
		for _, item := range t {
			if s := trimmedString(item); s != nil {
				cleaned = append(cleaned, *s)
			}
		}
		if len(cleaned) == 0 {
			return nil, nil
		}
		joined := strings.Join(cleaned, ", ")
		return &joined, cleaned
	case string:
		rawStr := strings.TrimSpace(t)
		parts := strings.Split(strings.ReplaceAll(rawStr, ";", ","), ",")
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				keywords = append(keywords, p)
			}
		}
		if rawStr == "" {
			return nil, keywords
		}
		return &rawStr, keywords
	}
	return nil, nil
}

// extractIngredients flattens recipeIngredient into trimmed non-empty
// strings, preserving order and duplicates.
func extractIngredients(v any) []string {
	var out []string
	for _, item := range asList(v) {
		if s := trimmedString(item); s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// extractSteps reads recipeInstructions. A bare string becomes a
// text-only step; an object contributes text (from "text" or "name") and
// an image. Entries with neither are dropped.
func extractSteps(v any) []Step {
	var steps []Step
	for _, item := range asList(v) {
		switch t := item.(type) {
		case string:
			if text := trimmedString(t); text != nil {
				steps = append(steps, Step{Text: text})
			}
		case map[string]any:
			text := trimmedString(t["text"])
			if text == nil {
				text = trimmedString(t["name"])
			}
			image := firstImageURL(t["image"])
			if text != nil || image != nil {
				steps = append(steps, Step{Text: text, Image: image})
			}
		}
	}
	return steps
}

// extractComments keeps only entries with usable text; a comment is never
// stored partially.
func extractComments(v any) []Comment {
	var out []Comment
	for _, item := range asList(v) {
		c, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := trimmedString(c["text"])
		if text == nil {
			continue
		}
		name, authorURL := extractAuthor(c["author"])
		var published *time.Time
		if s, ok := c["datePublished"].(string); ok {
			published = parseDateTime(s)
		}
		out = append(out, Comment{
			AuthorName:    name,
			AuthorURL:     authorURL,
			URL:           stringField(c["url"]),
			DatePublished: published,
			Text:          *text,
			TextHash:      hash.SumText(*text),
		})
	}
	return out
}

// extractCuisine passes a string through trimmed and joins a list with
// ", " after dropping empty members.
func extractCuisine(v any) *string {
	switch t := v.(type) {
	case string:
		return trimmedString(t)
	case []any:
		var parts []string
		for _, item := range t {
			if s := trimmedString(item); s != nil {
				parts = append(parts, *s)
			}
		}
		if len(parts) == 0 {
			return nil
		}
		joined := strings.Join(parts, ", ")
		return &joined
	}
	return nil
}
