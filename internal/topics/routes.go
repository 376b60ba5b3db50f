package topics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the topic API routes.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/topics/", handleList(store))
	r.Post("/api/articles/{id}/topics/", handleCreateForArticle(store))
}

// writeError encodes the message rather than splicing it into a JSON
// literal, so quotes and backslashes in error text stay valid JSON.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics, err := store.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if topics == nil {
			topics = []Topic{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(topics)
	}
}

type createRequest struct {
	Name string `json:"name"`
}

func handleCreateForArticle(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		articleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid article id")
			return
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		topic, err := store.AssignToArticle(r.Context(), articleID, req.Name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]*Topic{"topic": topic})
	}
}
