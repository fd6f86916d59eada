// Package listing extracts recipe ids from Cookpad VN search-result pages
// and owns the site's URL shapes.
package listing

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	searchURLTemplate = "https://cookpad.com/vn/tim-kiem/%s?page=%d"
	recipeURLTemplate = "https://cookpad.com/vn/cong-thuc/%d"
)

var (
	// Listing anchors may carry a trailing slash, query, or fragment.
	reRecipeRel = regexp.MustCompile(`^/vn/cong-thuc/(\d+)(?:[/?#].*)?$`)
	reRecipeAbs = regexp.MustCompile(`^https://cookpad\.com/vn/cong-thuc/(\d+)(?:[/?#].*)?$`)

	// Job validation requires the exact canonical form, no suffix allowed.
	reRecipeCanonical = regexp.MustCompile(`^https://cookpad\.com/vn/cong-thuc/(\d+)$`)
)

// SearchURL returns the listing page URL for a keyword and page number.
func SearchURL(keyword string, page int) string {
	return fmt.Sprintf(searchURLTemplate, url.PathEscape(keyword), page)
}

// RecipeURL returns the canonical, suffix-free detail URL for a recipe id.
func RecipeURL(id int64) string {
	return fmt.Sprintf(recipeURLTemplate, id)
}

// RecipeIDFromURL parses a canonical recipe URL into its id. It rejects
// any suffix so that workers validate against the exact form the queue
// stores.
func RecipeIDFromURL(rawURL string) (int64, bool) {
	m := reRecipeCanonical.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ExtractRecipeIDs scans every anchor in the document and returns the
// recipe ids linked from it, in first-seen order, deduplicated. Anchors
// that do not match the recipe URL shapes are ignored.
func ExtractRecipeIDs(html []byte) ([]int64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	seen := make(map[int64]struct{})
	var ids []int64
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		m := reRecipeRel.FindStringSubmatch(href)
		if m == nil {
			m = reRecipeAbs.FindStringSubmatch(href)
		}
		if m == nil {
			return
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids, nil
}
