package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/bepdata/recipe-crawler/internal/crawl"
	"github.com/bepdata/recipe-crawler/internal/recipe"
)

// Staging rows mirror the stg_* tables. Pointer fields map to nullable
// columns.

type recipeRow struct {
	RecipeID      int64   `json:"recipe_id"`
	Source        string  `json:"source"`
	Locale        string  `json:"locale"`
	URL           string  `json:"url"`
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	HeroImage     *string `json:"hero_image"`
	DatePublished *string `json:"date_published"`
	DateModified  *string `json:"date_modified"`
	Cuisine       *string `json:"cuisine"`
	AuthorName    *string `json:"author_name"`
	AuthorURL     *string `json:"author_url"`
	KeywordsRaw   *string `json:"keywords_raw"`
	BookmarkCount *int    `json:"bookmark_count"`
	LikeCount     *int    `json:"like_count"`
	CommentCount  *int    `json:"comment_count"`
	JobID         int64   `json:"job_id"`
	Keyword       string  `json:"keyword"`
	Page          int     `json:"page"`
}

type keywordRow struct {
	RecipeID int64  `json:"recipe_id"`
	Keyword  string `json:"keyword"`
}

type ingredientRow struct {
	RecipeID int64  `json:"recipe_id"`
	Index    int    `json:"ingredient_index"`
	Text     string `json:"ingredient_text"`
}

type stepRow struct {
	RecipeID int64   `json:"recipe_id"`
	Index    int     `json:"step_index"`
	Text     *string `json:"step_text"`
	Image    *string `json:"step_image"`
}

type commentRow struct {
	RecipeID      int64   `json:"recipe_id"`
	TextHash      string  `json:"text_hash"`
	AuthorName    *string `json:"author_name"`
	AuthorURL     *string `json:"author_url"`
	CommentURL    *string `json:"comment_url"`
	DatePublished *string `json:"date_published"`
	Text          string  `json:"comment_text"`
}

// WriteRecipe upserts the parent staging row and fully replaces the
// child collections for the recipe id. The source lists are unordered
// diffs the backend does not track, so replace-by-recipe_id is the only
// correct write. A retried attempt repeats the whole replacement, so a
// partial write from a failed attempt never survives.
func (s *Store) WriteRecipe(ctx context.Context, job crawl.Job, r *recipe.Recipe) error {
	row := recipeRow{
		RecipeID:      r.RecipeID,
		Source:        job.Source,
		Locale:        job.Locale,
		URL:           r.URL,
		Name:          r.Name,
		Description:   r.Description,
		HeroImage:     r.HeroImage,
		DatePublished: timestampPtr(r.DatePublished),
		DateModified:  timestampPtr(r.DateModified),
		Cuisine:       r.Cuisine,
		AuthorName:    r.AuthorName,
		AuthorURL:     r.AuthorURL,
		KeywordsRaw:   r.KeywordsRaw,
		BookmarkCount: r.BookmarkCount,
		LikeCount:     r.LikeCount,
		CommentCount:  r.CommentCount,
		JobID:         job.ID,
		Keyword:       job.Keyword,
		Page:          job.Page,
	}
	if err := s.client.Upsert(ctx, "stg_recipes", []recipeRow{row}, "recipe_id"); err != nil {
		return fmt.Errorf("write stg_recipes: %w", err)
	}

	filter := fmt.Sprintf("recipe_id=eq.%d", r.RecipeID)
	for _, table := range []string{"stg_recipe_keywords", "stg_recipe_ingredients", "stg_recipe_steps", "stg_recipe_comments"} {
		if err := s.client.DeleteWhere(ctx, table, filter); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if rows := keywordRows(r); len(rows) > 0 {
		if err := s.client.Upsert(ctx, "stg_recipe_keywords", rows, "recipe_id,keyword"); err != nil {
			return fmt.Errorf("write stg_recipe_keywords: %w", err)
		}
	}
	if rows := ingredientRows(r); len(rows) > 0 {
		if err := s.client.Upsert(ctx, "stg_recipe_ingredients", rows, "recipe_id,ingredient_index"); err != nil {
			return fmt.Errorf("write stg_recipe_ingredients: %w", err)
		}
	}
	if rows := stepRows(r); len(rows) > 0 {
		if err := s.client.Upsert(ctx, "stg_recipe_steps", rows, "recipe_id,step_index"); err != nil {
			return fmt.Errorf("write stg_recipe_steps: %w", err)
		}
	}
	if rows := commentRows(r); len(rows) > 0 {
		if err := s.client.Upsert(ctx, "stg_recipe_comments", rows, "recipe_id,text_hash"); err != nil {
			return fmt.Errorf("write stg_recipe_comments: %w", err)
		}
	}
	return nil
}

// keywordRows deduplicates the display list: the staging key is
// (recipe_id, keyword), and a batch upsert cannot touch the same row
// twice.
func keywordRows(r *recipe.Recipe) []keywordRow {
	seen := make(map[string]struct{}, len(r.Keywords))
	rows := make([]keywordRow, 0, len(r.Keywords))
	for _, k := range r.Keywords {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, keywordRow{RecipeID: r.RecipeID, Keyword: k})
	}
	return rows
}

func ingredientRows(r *recipe.Recipe) []ingredientRow {
	rows := make([]ingredientRow, 0, len(r.Ingredients))
	for i, text := range r.Ingredients {
		rows = append(rows, ingredientRow{RecipeID: r.RecipeID, Index: i, Text: text})
	}
	return rows
}

func stepRows(r *recipe.Recipe) []stepRow {
	rows := make([]stepRow, 0, len(r.Steps))
	for i, st := range r.Steps {
		rows = append(rows, stepRow{RecipeID: r.RecipeID, Index: i, Text: st.Text, Image: st.Image})
	}
	return rows
}

// commentRows deduplicates on the normalized text hash; duplicate
// comments collapse to one stored row.
func commentRows(r *recipe.Recipe) []commentRow {
	seen := make(map[string]struct{}, len(r.Comments))
	rows := make([]commentRow, 0, len(r.Comments))
	for _, c := range r.Comments {
		if _, dup := seen[c.TextHash]; dup {
			continue
		}
		seen[c.TextHash] = struct{}{}
		rows = append(rows, commentRow{
			RecipeID:      r.RecipeID,
			TextHash:      c.TextHash,
			AuthorName:    c.AuthorName,
			AuthorURL:     c.AuthorURL,
			CommentURL:    c.URL,
			DatePublished: timestampPtr(c.DatePublished),
			Text:          c.Text,
		})
	}
	return rows
}

func timestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
