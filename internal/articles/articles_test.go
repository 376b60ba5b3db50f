package articles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/db"
	"inkpress/internal/events"
	"inkpress/internal/images"
)

func setupTestStore(t *testing.T) (*Store, *images.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database), images.NewStore(database, t.TempDir())
}

func setupRouter(t *testing.T) (chi.Router, *Store, *images.Store) {
	t.Helper()
	store, imageStore := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store, imageStore, events.NewHub())
	return r, store, imageStore
}

func publishNow(t *testing.T, store *Store, title, content string) *Article {
	t.Helper()
	ctx := context.Background()
	draft, err := store.CreateDraft(ctx, title)
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	article, err := store.Publish(ctx, draft.ID, PublishParams{Title: title, Content: content})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return article
}

func TestSlugFromTitle(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	a, err := store.CreateDraft(ctx, "Hello, World! A Test")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if a.Slug != "hello-world-a-test" {
		t.Errorf("unexpected slug %q", a.Slug)
	}

	empty, _ := store.CreateDraft(ctx, "")
	if empty.Slug != "untitled" {
		t.Errorf("expected untitled slug, got %q", empty.Slug)
	}
}

func TestDuplicateSlugsGetSuffixes(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	first, _ := store.CreateDraft(ctx, "Same Title")
	second, _ := store.CreateDraft(ctx, "Same Title")
	third, _ := store.CreateDraft(ctx, "Same Title")

	if first.Slug != "same-title" {
		t.Errorf("first slug: %q", first.Slug)
	}
	if second.Slug != "same-title-1" {
		t.Errorf("second slug: %q", second.Slug)
	}
	if third.Slug != "same-title-2" {
		t.Errorf("third slug: %q", third.Slug)
	}
}

func TestSlugStableAcrossTitleEdits(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	a, _ := store.CreateDraft(ctx, "Original Title")
	if _, err := store.Autosave(ctx, a.ID, "Completely New Title", "<p>body</p>", "body"); err != nil {
		t.Fatalf("Autosave: %v", err)
	}

	updated, _ := store.GetByID(ctx, a.ID)
	if updated.Slug != "original-title" {
		t.Errorf("slug changed on title edit: %q", updated.Slug)
	}
	if updated.Title != "Completely New Title" {
		t.Errorf("title not updated: %q", updated.Title)
	}
}

func TestAutosaveUnknownArticle(t *testing.T) {
	store, _ := setupTestStore(t)
	if _, err := store.Autosave(context.Background(), 999, "T", "c", "e"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAutosaveStripsDataURIImages(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	a, _ := store.CreateDraft(ctx, "Images")
	content := `<p>ok <img src="data:image/png;base64,AAAA"> <img src="/media/x.png" data-image-id="4"></p>`
	if _, err := store.Autosave(ctx, a.ID, "Images", content, ""); err != nil {
		t.Fatalf("Autosave: %v", err)
	}

	saved, _ := store.GetByID(ctx, a.ID)
	if strings.Contains(saved.Content, "data:") {
		t.Errorf("sanitizer kept data: URI: %q", saved.Content)
	}
	if !strings.Contains(saved.Content, "/media/x.png") {
		t.Errorf("sanitizer dropped hosted image: %q", saved.Content)
	}
	if !strings.Contains(saved.Content, `data-image-id="4"`) {
		t.Errorf("sanitizer dropped image id tag: %q", saved.Content)
	}
}

func TestPublishAndScheduling(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	a := publishNow(t, store, "Now", "<p>now</p>")
	if a.Status != StatusPublished {
		t.Errorf("expected published, got %s", a.Status)
	}
	if !a.IsPublished() {
		t.Error("expected IsPublished true")
	}

	// Future publication time schedules instead.
	draft, _ := store.CreateDraft(ctx, "Later")
	future := time.Now().Add(24 * time.Hour)
	scheduled, err := store.Publish(ctx, draft.ID, PublishParams{Title: "Later", PublishedAt: &future})
	if err != nil {
		t.Fatalf("Publish scheduled: %v", err)
	}
	if scheduled.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", scheduled.Status)
	}
	if scheduled.IsPublished() {
		t.Error("scheduled article must not be published yet")
	}
}

func TestScheduledPromotionOnSave(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	draft, _ := store.CreateDraft(ctx, "Due")
	past := time.Now().Add(-time.Hour)
	if _, err := store.Publish(ctx, draft.ID, PublishParams{Title: "Due", PublishedAt: &past}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// A past publication time publishes immediately.
	a, _ := store.GetByID(ctx, draft.ID)
	if a.Status != StatusPublished {
		t.Errorf("expected published for past time, got %s", a.Status)
	}
}

func TestSearch(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	publishNow(t, store, "Go Concurrency Patterns", "")
	publishNow(t, store, "Advanced Go Testing", "")
	publishNow(t, store, "Cooking With Cast Iron", "")
	store.CreateDraft(ctx, "Go Drafts Are Hidden")

	results, err := store.Search(ctx, "go")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	// Ordered by title.
	if results[0].Title != "Advanced Go Testing" {
		t.Errorf("unexpected order: %+v", results)
	}

	// Blank and whitespace queries return empty, not an error.
	for _, q := range []string{"", "   ", "\t"} {
		results, err := store.Search(ctx, q)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(results) != 0 {
			t.Errorf("Search(%q): expected empty, got %d", q, len(results))
		}
	}
}

func TestSearchLimit(t *testing.T) {
	store, _ := setupTestStore(t)

	for _, title := range []string{"Go 1", "Go 2", "Go 3", "Go 4", "Go 5", "Go 6", "Go 7"} {
		publishNow(t, store, title, "")
	}
	results, _ := store.Search(context.Background(), "go")
	if len(results) != searchLimit {
		t.Errorf("expected %d results, got %d", searchLimit, len(results))
	}
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	publishNow(t, store, "100% Pure Go", "")
	publishNow(t, store, "100 Proof Go", "")
	publishNow(t, store, "snake_case names", "")
	publishNow(t, store, "snakeXcase names", "")

	results, err := store.Search(ctx, "100%")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "100% Pure Go" {
		t.Errorf("%% should match literally, got %+v", results)
	}

	results, err = store.Search(ctx, "snake_case")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "snake_case names" {
		t.Errorf("_ should match literally, got %+v", results)
	}
}

func TestPublishWithoutTopicKeepsExistingTopic(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	store.db.Exec(`INSERT INTO topics (name, slug) VALUES ('Go', 'go')`)
	draft, _ := store.CreateDraft(ctx, "Topical")
	topicID := int64(1)
	if _, err := store.Publish(ctx, draft.ID, PublishParams{Title: "Topical", TopicID: &topicID}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// A republish that sends no topic leaves the assignment alone.
	a, err := store.Publish(ctx, draft.ID, PublishParams{Title: "Topical", Content: "<p>v2</p>"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if a.TopicID == nil || *a.TopicID != topicID {
		t.Errorf("republish without a topic cleared it: %+v", a.TopicID)
	}
}

func TestTopicDeleteNullsArticleTopic(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := NewStore(database)
	ctx := context.Background()

	database.Exec(`INSERT INTO topics (name, slug) VALUES ('Go', 'go')`)
	draft, _ := store.CreateDraft(ctx, "With Topic")
	topicID := int64(1)
	store.Publish(ctx, draft.ID, PublishParams{Title: "With Topic", TopicID: &topicID})

	database.Exec(`DELETE FROM topics WHERE id = 1`)

	a, _ := store.GetByID(ctx, draft.ID)
	if a.TopicID != nil {
		t.Errorf("expected topic to be nulled, got %v", *a.TopicID)
	}
}

// HTTP handler tests

func TestWriteErrorStaysValidJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusInternalServerError, `near "drop": syntax error \ here`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v: %s", err, w.Body.String())
	}
	if body["error"] != `near "drop": syntax error \ here` {
		t.Errorf("message mangled: %q", body["error"])
	}
}

func TestRoute_AutosaveAndFetch(t *testing.T) {
	r, store, _ := setupRouter(t)
	draft, _ := store.CreateDraft(context.Background(), "Draft")

	body := `{"id":` + jsonInt(draft.ID) + `,"title":"Draft","content":"<p>hello</p>","excerpt":"hello"}`
	req := httptest.NewRequest("POST", "/api/articles/autosave/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["message"] != "saved" || resp["saved_at"] == "" {
		t.Errorf("unexpected response: %+v", resp)
	}

	req = httptest.NewRequest("GET", "/api/articles/slug/draft", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("fetch by slug: expected 200, got %d", w.Code)
	}
	var fetched Article
	json.Unmarshal(w.Body.Bytes(), &fetched)
	if fetched.Content != "<p>hello</p>" {
		t.Errorf("unexpected content %q", fetched.Content)
	}
}

func TestRoute_AutosaveUnknownID(t *testing.T) {
	r, _, _ := setupRouter(t)

	req := httptest.NewRequest("POST", "/api/articles/autosave/", strings.NewReader(`{"id":999,"title":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "article not found") {
		t.Errorf("expected error body, got %s", w.Body.String())
	}
}

func TestRoute_AutosaveMissingID(t *testing.T) {
	r, _, _ := setupRouter(t)

	req := httptest.NewRequest("POST", "/api/articles/autosave/", strings.NewReader(`{"title":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRoute_Search(t *testing.T) {
	r, store, _ := setupRouter(t)
	publishNow(t, store, "Searchable Article", "")

	req := httptest.NewRequest("GET", "/api/search/articles?q=searchable", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Results []SearchResult `json:"results"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Slug != "searchable-article" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}

	// Blank query responds with an empty results array.
	req = httptest.NewRequest("GET", "/api/search/articles?q=", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("expected empty results array, got %s", w.Body.String())
	}
}

func TestRoute_PublishPrunesImages(t *testing.T) {
	r, store, imageStore := setupRouter(t)
	ctx := context.Background()

	draft, _ := store.CreateDraft(ctx, "With Images")
	kept, _ := imageStore.Save(ctx, draft.ID, "a.png", []byte("a"))
	imageStore.Save(ctx, draft.ID, "b.png", []byte("b"))

	body := `{"title":"With Images","content":"<p>x</p>","excerpt":"x","image_ids":[` + jsonInt(kept.ID) + `]}`
	req := httptest.NewRequest("POST", "/api/articles/"+jsonInt(draft.ID)+"/publish/", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	imgs, _ := imageStore.ListForArticle(ctx, draft.ID)
	if len(imgs) != 1 || imgs[0].ID != kept.ID {
		t.Errorf("expected pruning to keep only listed image, got %+v", imgs)
	}
}

func TestRoute_Delete(t *testing.T) {
	r, store, _ := setupRouter(t)
	draft, _ := store.CreateDraft(context.Background(), "Doomed")

	req := httptest.NewRequest("DELETE", "/api/articles/"+jsonInt(draft.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if _, err := store.GetByID(context.Background(), draft.ID); err != ErrNotFound {
		t.Errorf("expected article gone, got %v", err)
	}
}

func jsonInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
