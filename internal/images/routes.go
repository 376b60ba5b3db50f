package images

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// maxUploadBytes bounds the multipart form held in memory per upload.
const maxUploadBytes = 20 << 20

// RegisterRoutes mounts the image upload API.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Post("/api/images/upload/", handleUpload(store))
}

// writeError encodes the message rather than splicing it into a JSON
// literal, so quotes and backslashes in error text stay valid JSON.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type uploadResponse struct {
	URL string `json:"url"`
	ID  int64  `json:"id"`
}

func handleUpload(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		articleID, err := strconv.ParseInt(r.FormValue("article"), 10, 64)
		if err != nil || articleID < 1 {
			writeError(w, http.StatusBadRequest, "article id is required")
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image file is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading upload")
			return
		}
		if len(data) == 0 {
			writeError(w, http.StatusBadRequest, "image file is empty")
			return
		}

		img, err := store.Save(r.Context(), articleID, header.Filename, data)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(uploadResponse{URL: img.URL, ID: img.ID})
	}
}
