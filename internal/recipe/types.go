// Package recipe parses the JSON-LD recipe markup embedded in detail
// pages into a normalized record. The markup is effectively untyped
// (strings where numbers are expected, singular values where lists are
// expected, several shapes for the same logical field), so every field is
// extracted independently and degrades to absent instead of failing the
// record.
package recipe

import "time"

// Recipe is the normalized result of parsing one detail page. Pointer
// fields are nullable staging columns; nil means the markup did not carry
// a usable value.
type Recipe struct {
	RecipeID      int64
	URL           string
	Name          *string
	Description   *string
	HeroImage     *string
	DatePublished *time.Time
	DateModified  *time.Time
	Cuisine       *string
	AuthorName    *string
	AuthorURL     *string
	KeywordsRaw   *string
	Keywords      []string
	Ingredients   []string
	Steps         []Step
	BookmarkCount *int
	LikeCount     *int
	CommentCount  *int
	Comments      []Comment
}

// Step is one cooking instruction. Either field may be absent, never both.
type Step struct {
	Text  *string
	Image *string
}

// Comment is one user comment. Text is always present; TextHash is the
// normalized-content digest used as the staging dedup key.
type Comment struct {
	AuthorName    *string
	AuthorURL     *string
	URL           *string
	DatePublished *time.Time
	Text          string
	TextHash      string
}
