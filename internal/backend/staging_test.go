package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bepdata/recipe-crawler/internal/crawl"
	"github.com/bepdata/recipe-crawler/internal/hash"
	"github.com/bepdata/recipe-crawler/internal/recipe"
)

func strPtr(s string) *string { return &s }

func sampleRecipe() *recipe.Recipe {
	published := time.Date(2025, 5, 20, 8, 30, 0, 0, time.UTC)
	return &recipe.Recipe{
		RecipeID:    42,
		URL:         "https://cookpad.com/vn/cong-thuc/42",
		Name:        strPtr("Gà kho gừng"),
		Keywords:    []string{"gà", "kho", "gà"},
		Ingredients: []string{"500g gà", "1 củ gừng"},
		Steps: []recipe.Step{
			{Text: strPtr("Sơ chế gà")},
			{Text: strPtr("Kho nhỏ lửa"), Image: strPtr("https://img.example/2.jpg")},
		},
		Comments: []recipe.Comment{
			{Text: "Ngon quá", TextHash: hash.SumText("Ngon quá"), DatePublished: &published},
			{Text: "ngon  quá", TextHash: hash.SumText("ngon  quá")},
		},
		DatePublished: &published,
	}
}

func sampleJob() crawl.Job {
	return crawl.Job{
		ID: 7, Source: "cookpad", Locale: "vn", Keyword: "gà", Tier: 1, Page: 2,
		RecipeID: 42, RequestedURL: "https://cookpad.com/vn/cong-thuc/42",
	}
}

func TestWriteRecipe_RequestSequence(t *testing.T) {
	t.Parallel()

	rs := newRecordingServer(t)
	require.NoError(t, rs.store(t).WriteRecipe(context.Background(), sampleJob(), sampleRecipe()))

	reqs := rs.recorded()
	require.Len(t, reqs, 9)

	// Parent row first.
	require.Equal(t, "POST", reqs[0].Method)
	require.Equal(t, "/rest/v1/stg_recipes", reqs[0].Path)
	require.Contains(t, reqs[0].Query, "on_conflict=recipe_id")
	require.Len(t, reqs[0].Rows, 1)
	require.Equal(t, "Gà kho gừng", reqs[0].Rows[0]["name"])
	require.Equal(t, "2025-05-20T08:30:00Z", reqs[0].Rows[0]["date_published"])
	require.Equal(t, float64(7), reqs[0].Rows[0]["job_id"])

	// All child tables cleared before any child write.
	deletes := map[string]bool{}
	for _, req := range reqs[1:5] {
		require.Equal(t, "DELETE", req.Method)
		require.Equal(t, "recipe_id=eq.42", req.Query)
		deletes[req.Path] = true
	}
	require.True(t, deletes["/rest/v1/stg_recipe_keywords"])
	require.True(t, deletes["/rest/v1/stg_recipe_ingredients"])
	require.True(t, deletes["/rest/v1/stg_recipe_steps"])
	require.True(t, deletes["/rest/v1/stg_recipe_comments"])

	for _, req := range reqs[5:] {
		require.Equal(t, "POST", req.Method)
	}
}

func TestWriteRecipe_DeduplicatesKeywordsAndComments(t *testing.T) {
	t.Parallel()

	rs := newRecordingServer(t)
	require.NoError(t, rs.store(t).WriteRecipe(context.Background(), sampleJob(), sampleRecipe()))

	var keywords, comments []map[string]any
	for _, req := range rs.recorded() {
		switch {
		case req.Method == "POST" && req.Path == "/rest/v1/stg_recipe_keywords":
			keywords = req.Rows
		case req.Method == "POST" && req.Path == "/rest/v1/stg_recipe_comments":
			comments = req.Rows
		}
	}
	require.Len(t, keywords, 2)
	require.Equal(t, "gà", keywords[0]["keyword"])
	require.Equal(t, "kho", keywords[1]["keyword"])

	// "Ngon quá" and "ngon  quá" normalize to the same hash.
	require.Len(t, comments, 1)
	require.Equal(t, "Ngon quá", comments[0]["comment_text"])
}

func TestWriteRecipe_SkipsEmptyChildSets(t *testing.T) {
	t.Parallel()

	rs := newRecordingServer(t)
	r := &recipe.Recipe{RecipeID: 99, URL: "https://cookpad.com/vn/cong-thuc/99"}
	require.NoError(t, rs.store(t).WriteRecipe(context.Background(), sampleJob(), r))

	// Parent upsert plus the four clears, no child upserts.
	reqs := rs.recorded()
	require.Len(t, reqs, 5)
	for _, req := range reqs[1:] {
		require.Equal(t, "DELETE", req.Method)
	}
}

func TestWriteRecipe_ChildIndexesAreOrdinal(t *testing.T) {
	t.Parallel()

	rs := newRecordingServer(t)
	require.NoError(t, rs.store(t).WriteRecipe(context.Background(), sampleJob(), sampleRecipe()))

	for _, req := range rs.recorded() {
		if req.Method != "POST" || req.Path != "/rest/v1/stg_recipe_steps" {
			continue
		}
		require.Len(t, req.Rows, 2)
		require.Equal(t, float64(0), req.Rows[0]["step_index"])
		require.Equal(t, float64(1), req.Rows[1]["step_index"])
		require.Equal(t, "https://img.example/2.jpg", req.Rows[1]["step_image"])
		return
	}
	t.Fatal("no step upsert recorded")
}
