package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkpress/internal/db"
)

// ErrNotFound is returned when the requested article does not exist.
var ErrNotFound = errors.New("article not found")

// searchLimit caps the number of search results returned.
const searchLimit = 5

// Store manages article persistence.
type Store struct {
	db *db.DB
}

// NewStore creates a new article store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateDraft inserts an empty draft with a slug derived from the title.
// Duplicate slugs get -1, -2 suffixes.
func (s *Store) CreateDraft(ctx context.Context, title string) (*Article, error) {
	slug, err := s.uniqueSlug(ctx, slugify(title))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (title, slug, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		title, slug, StatusDraft, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading draft id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID retrieves an article by its id.
func (s *Store) GetByID(ctx context.Context, id int64) (*Article, error) {
	return s.get(ctx, `WHERE id = ?`, id)
}

// GetBySlug retrieves an article by its slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Article, error) {
	return s.get(ctx, `WHERE slug = ?`, slug)
}

const selectColumns = `SELECT id, title, slug, content, excerpt, status, topic_id, created_at, updated_at, published_at FROM articles `

func (s *Store) get(ctx context.Context, where string, arg interface{}) (*Article, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+where, arg)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting article: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var a Article
	var topicID sql.NullInt64
	var publishedAt sql.NullTime
	err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Content, &a.Excerpt, &a.Status,
		&topicID, &a.CreatedAt, &a.UpdatedAt, &publishedAt)
	if err != nil {
		return nil, err
	}
	if topicID.Valid {
		a.TopicID = &topicID.Int64
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	return &a, nil
}

// List returns articles matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Article, error) {
	query := selectColumns + `WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.TopicID > 0 {
		query += ` AND topic_id = ?`
		args = append(args, filter.TopicID)
	}

	query += ` ORDER BY published_at DESC, created_at DESC`

	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	query += ` LIMIT ?`
	args = append(args, pageSize)
	if filter.Page > 1 {
		query += ` OFFSET ?`
		args = append(args, (filter.Page-1)*pageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Autosave updates title, content and excerpt of an existing article.
// The slug never changes on title updates. Scheduled articles whose
// publication time has arrived are promoted to published.
func (s *Store) Autosave(ctx context.Context, id int64, title, content, excerpt string) (time.Time, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET title = ?, content = ?, excerpt = ?, updated_at = ? WHERE id = ?`,
		title, sanitizeContent(content), excerpt, now, id,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("saving article: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return time.Time{}, ErrNotFound
	}

	if err := s.promoteIfDue(ctx, id); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// Publish performs a full save and moves the article into published (or
// scheduled, when the publication time is in the future) state.
func (s *Store) Publish(ctx context.Context, id int64, params PublishParams) (*Article, error) {
	now := time.Now().UTC()
	publishedAt := now
	status := StatusPublished
	if params.PublishedAt != nil {
		publishedAt = params.PublishedAt.UTC()
		if publishedAt.After(now) {
			status = StatusScheduled
		}
	}

	// A nil TopicID means "leave the topic alone", not "clear it"; the
	// column is only touched when a topic was supplied.
	set := `title = ?, content = ?, excerpt = ?, status = ?, published_at = ?, updated_at = ?`
	args := []interface{}{params.Title, sanitizeContent(params.Content), params.Excerpt, status, publishedAt, now}
	if params.TopicID != nil {
		set += `, topic_id = ?`
		args = append(args, *params.TopicID)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, `UPDATE articles SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("publishing article: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

// promoteIfDue flips scheduled articles to published once their
// publication time has passed.
func (s *Store) promoteIfDue(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET status = ? WHERE id = ? AND status = ? AND published_at <= ?`,
		StatusPublished, id, StatusScheduled, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("promoting scheduled article: %w", err)
	}
	return nil
}

// Delete removes an article. Associated image rows cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting article: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// likeEscaper makes user input safe inside a LIKE pattern; the queries
// pair it with ESCAPE '\' so % and _ match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search returns up to searchLimit published articles whose title
// contains the query, case-insensitively, ordered by title. A blank
// query returns no results without touching the index.
func (s *Store) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, slug FROM articles
		 WHERE status = ? AND published_at <= ? AND title LIKE '%' || ? || '%' ESCAPE '\'
		 ORDER BY title LIMIT ?`,
		StatusPublished, time.Now().UTC(), likeEscaper.Replace(query), searchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching articles: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var sr SearchResult
		if err := rows.Scan(&sr.Title, &sr.Slug); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

// uniqueSlug appends -1, -2, ... to the base slug until it is free.
func (s *Store) uniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for i := 1; ; i++ {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE slug = ?`, slug).Scan(&one)
		if err == sql.ErrNoRows {
			return slug, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking slug: %w", err)
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
