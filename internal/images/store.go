package images

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/db"
)

// Image is an uploaded file associated with an article.
type Image struct {
	ID        int64     `json:"id"`
	ArticleID int64     `json:"article_id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages uploaded image files and their database rows.
type Store struct {
	db       *db.DB
	mediaDir string
}

// NewStore creates an image store writing files under mediaDir.
func NewStore(database *db.DB, mediaDir string) *Store {
	return &Store{db: database, mediaDir: mediaDir}
}

// Save writes the image bytes to the media directory under a fresh
// UUID-based name and records the row. The extension is taken from the
// uploaded filename.
func (s *Store) Save(ctx context.Context, articleID int64, uploadName string, data []byte) (*Image, error) {
	exists, err := s.articleExists(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("article %d not found", articleID)
	}

	ext := strings.ToLower(filepath.Ext(uploadName))
	if ext == "" {
		ext = ".bin"
	}
	filename := uuid.New().String() + ext

	if err := os.MkdirAll(s.mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.mediaDir, filename), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing image file: %w", err)
	}

	img := &Image{
		ArticleID: articleID,
		Filename:  filename,
		URL:       "/media/" + filename,
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO article_images (article_id, filename, url, created_at) VALUES (?, ?, ?, ?)`,
		img.ArticleID, img.Filename, img.URL, img.CreatedAt,
	)
	if err != nil {
		os.Remove(filepath.Join(s.mediaDir, filename))
		return nil, fmt.Errorf("inserting image: %w", err)
	}
	img.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading image id: %w", err)
	}
	return img, nil
}

// ListForArticle returns all images recorded for an article.
func (s *Store) ListForArticle(ctx context.Context, articleID int64) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, article_id, filename, url, created_at FROM article_images WHERE article_id = ? ORDER BY id`,
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var imgs []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ArticleID, &img.Filename, &img.URL, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		imgs = append(imgs, img)
	}
	return imgs, rows.Err()
}

// Prune deletes images of the article whose ids are not in keep, removing
// their files from disk. Missing files are tolerated.
func (s *Store) Prune(ctx context.Context, articleID int64, keep []int64) error {
	imgs, err := s.ListForArticle(ctx, articleID)
	if err != nil {
		return err
	}

	keepSet := make(map[int64]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	for _, img := range imgs {
		if keepSet[img.ID] {
			continue
		}
		if err := s.deleteOne(ctx, img); err != nil {
			return err
		}
	}
	return nil
}

// DeleteForArticle removes all images and files belonging to an article.
func (s *Store) DeleteForArticle(ctx context.Context, articleID int64) error {
	return s.Prune(ctx, articleID, nil)
}

func (s *Store) deleteOne(ctx context.Context, img Image) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM article_images WHERE id = ?`, img.ID); err != nil {
		return fmt.Errorf("deleting image %d: %w", img.ID, err)
	}
	if err := os.Remove(filepath.Join(s.mediaDir, img.Filename)); err != nil && !os.IsNotExist(err) {
		log.Printf("images: removing file %s: %v", img.Filename, err)
	}
	return nil
}

func (s *Store) articleExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking article: %w", err)
	}
	return true, nil
}
