package articles

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/events"
	"inkpress/internal/images"
)

// RegisterRoutes mounts the article API routes.
func RegisterRoutes(r chi.Router, store *Store, imageStore *images.Store, hub *events.Hub) {
	r.Get("/api/search/articles", handleSearch(store))
	r.Post("/api/articles/", handleCreate(store, hub))
	r.Get("/api/articles/", handleList(store))
	r.Post("/api/articles/autosave/", handleAutosave(store, hub))
	r.Get("/api/articles/slug/{slug}", handleGetBySlug(store))
	r.Get("/api/articles/{id}", handleGet(store))
	r.Post("/api/articles/{id}/publish/", handlePublish(store, imageStore, hub))
	r.Delete("/api/articles/{id}", handleDelete(store, imageStore, hub))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError encodes the message rather than splicing it into a JSON
// literal, so quotes and backslashes in error text stay valid JSON.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleSearch(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := store.Search(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
	}
}

type createRequest struct {
	Title string `json:"title"`
}

func handleCreate(store *Store, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		article, err := store.CreateDraft(r.Context(), req.Title)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		hub.Publish(events.Event{Type: events.TypeArticleSaved, ArticleID: article.ID, Slug: article.Slug, Title: article.Title})
		writeJSON(w, http.StatusCreated, article)
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{}
		if v := r.URL.Query().Get("status"); v != "" {
			filter.Status = Status(v)
		}
		if v := r.URL.Query().Get("topic"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				filter.TopicID = n
			}
		}
		if v := r.URL.Query().Get("page"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Page = n
			}
		}
		if v := r.URL.Query().Get("page_size"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n <= 50 {
				filter.PageSize = n
			}
		}

		list, err := store.List(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if list == nil {
			list = []Article{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid article id")
			return
		}
		article, err := store.GetByID(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, article)
	}
}

func handleGetBySlug(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		article, err := store.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, article)
	}
}

type autosaveRequest struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
}

func handleAutosave(store *Store, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req autosaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ID == 0 {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}

		savedAt, err := store.Autosave(r.Context(), req.ID, req.Title, req.Content, req.Excerpt)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		hub.Publish(events.Event{Type: events.TypeArticleSaved, ArticleID: req.ID, Title: req.Title})
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":  "saved",
			"saved_at": savedAt.Format(time.RFC3339),
		})
	}
}

type publishRequest struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt"`
	ImageIDs    []int64    `json:"image_ids"`
	TopicID     *int64     `json:"topic_id,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func handlePublish(store *Store, imageStore *images.Store, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid article id")
			return
		}

		var req publishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		article, err := store.Publish(r.Context(), id, PublishParams{
			Title:       req.Title,
			Content:     req.Content,
			Excerpt:     req.Excerpt,
			TopicID:     req.TopicID,
			PublishedAt: req.PublishedAt,
		})
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		// Stored images the submission no longer references are removed.
		if err := imageStore.Prune(r.Context(), id, req.ImageIDs); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		hub.Publish(events.Event{Type: events.TypeArticlePublished, ArticleID: article.ID, Slug: article.Slug, Title: article.Title})
		writeJSON(w, http.StatusOK, article)
	}
}

func handleDelete(store *Store, imageStore *images.Store, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid article id")
			return
		}

		// Remove files first; the rows would cascade anyway.
		if err := imageStore.DeleteForArticle(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := store.Delete(r.Context(), id); err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "article not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		hub.Publish(events.Event{Type: events.TypeArticleDeleted, ArticleID: id})
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	}
}
