package images

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.Exec(`INSERT INTO articles (title, slug) VALUES ('Test', 'test')`); err != nil {
		t.Fatalf("seed article: %v", err)
	}
	return NewStore(database, t.TempDir())
}

func TestSaveWritesFileAndRow(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	img, err := store.Save(ctx, 1, "article-1.png", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if img.ID == 0 {
		t.Error("expected non-zero id")
	}
	if !strings.HasPrefix(img.URL, "/media/") || !strings.HasSuffix(img.URL, ".png") {
		t.Errorf("unexpected url %q", img.URL)
	}

	data, err := os.ReadFile(filepath.Join(store.mediaDir, img.Filename))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if !bytes.Equal(data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Error("stored bytes do not match upload")
	}
}

func TestSaveUnknownArticle(t *testing.T) {
	store := setupTestStore(t)
	if _, err := store.Save(context.Background(), 999, "x.png", []byte("data")); err == nil {
		t.Error("expected error for unknown article")
	}
}

func TestPruneRemovesUnlistedImages(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	kept, _ := store.Save(ctx, 1, "a.png", []byte("a"))
	dropped, _ := store.Save(ctx, 1, "b.png", []byte("b"))

	if err := store.Prune(ctx, 1, []int64{kept.ID}); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	imgs, _ := store.ListForArticle(ctx, 1)
	if len(imgs) != 1 || imgs[0].ID != kept.ID {
		t.Fatalf("expected only kept image, got %+v", imgs)
	}
	if _, err := os.Stat(filepath.Join(store.mediaDir, dropped.Filename)); !os.IsNotExist(err) {
		t.Error("expected dropped file to be removed from disk")
	}
	if _, err := os.Stat(filepath.Join(store.mediaDir, kept.Filename)); err != nil {
		t.Errorf("expected kept file to remain: %v", err)
	}
}

func TestPruneToleratesMissingFile(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	img, _ := store.Save(ctx, 1, "a.png", []byte("a"))
	os.Remove(filepath.Join(store.mediaDir, img.Filename))

	if err := store.DeleteForArticle(ctx, 1); err != nil {
		t.Fatalf("DeleteForArticle: %v", err)
	}
	imgs, _ := store.ListForArticle(ctx, 1)
	if len(imgs) != 0 {
		t.Errorf("expected no images, got %d", len(imgs))
	}
}

func multipartUpload(t *testing.T, articleID, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(data)
	mw.WriteField("article", articleID)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestRoute_Upload(t *testing.T) {
	store := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	body, contentType := multipartUpload(t, "1", "article-1.png", []byte("pngbytes"))
	req := httptest.NewRequest("POST", "/api/images/upload/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp uploadResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ID == 0 || !strings.HasPrefix(resp.URL, "/media/") {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRoute_UploadMissingFile(t *testing.T) {
	store := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("article", "1")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/images/upload/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRoute_UploadBadArticle(t *testing.T) {
	store := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	body, contentType := multipartUpload(t, "999", "x.png", []byte("data"))
	req := httptest.NewRequest("POST", "/api/images/upload/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown article, got %d", w.Code)
	}
}
