package offload

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"inkpress/internal/client"
)

// Uploader is the slice of the API client the offloader needs.
type Uploader interface {
	UploadArticleImage(ctx context.Context, up client.ImageUpload) (*client.UploadedImage, error)
}

// Image is the outcome of offloading one inline image, in document order.
type Image struct {
	Index int
	URL   string
	ID    int64
	Err   error
}

// Result is the outcome of one Rewrite pass.
type Result struct {
	HTML        string  // content with successfully uploaded images rewritten
	Images      []Image // per-image outcomes, document order
	UploadedIDs []int64 // ids of images uploaded in this pass
	Failed      int     // number of images that could not be offloaded
}

// Offloader replaces inline data-URI images in article HTML with
// server-hosted URLs. Uploads within one pass run in parallel under a
// concurrency limit; every image settles before Rewrite returns, and one
// failure never blocks the others.
type Offloader struct {
	uploader    Uploader
	concurrency int
}

// New creates an Offloader. Concurrency below 1 is clamped to 1.
func New(uploader Uploader, concurrency int) *Offloader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Offloader{uploader: uploader, concurrency: concurrency}
}

// Rewrite scans the HTML fragment for img nodes with data: sources,
// uploads each under the name article-<id>.<ext>, and rewrites the node
// to the hosted URL tagged with data-image-id. Already-hosted sources
// are left untouched. Images that fail stay inline so a later save
// retries only those.
func (o *Offloader) Rewrite(ctx context.Context, htmlContent string, articleID int64) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parsing content: %w", err)
	}

	var inline []*goquery.Selection
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if ClassifySource(src) == SourceData {
			inline = append(inline, sel)
		}
	})

	result := &Result{Images: make([]Image, len(inline))}
	if len(inline) == 0 {
		result.HTML = htmlContent
		return result, nil
	}

	sem := make(chan struct{}, o.concurrency)
	var mu sync.Mutex
	uploaded := make([]*client.UploadedImage, len(inline))

	var wg sync.WaitGroup
	for i, sel := range inline {
		wg.Add(1)
		go func(i int, sel *goquery.Selection) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			src, _ := sel.Attr("src")
			uri, err := ParseDataURI(src)
			if err != nil {
				mu.Lock()
				result.Images[i] = Image{Index: i, Err: err}
				mu.Unlock()
				return
			}

			img, err := o.uploader.UploadArticleImage(ctx, client.ImageUpload{
				ArticleID:   articleID,
				Filename:    fmt.Sprintf("article-%d.%s", articleID, uri.Ext()),
				ContentType: uri.MediaType,
				Data:        uri.Data,
			})
			mu.Lock()
			if err != nil {
				result.Images[i] = Image{Index: i, Err: err}
			} else {
				result.Images[i] = Image{Index: i, URL: img.URL, ID: img.ID}
				uploaded[i] = img
			}
			mu.Unlock()
		}(i, sel)
	}
	wg.Wait()

	// All uploads have settled; rewrite the successful nodes serially.
	for i, sel := range inline {
		img := uploaded[i]
		if img == nil {
			result.Failed++
			continue
		}
		sel.SetAttr("src", img.URL)
		sel.SetAttr("data-image-id", strconv.FormatInt(img.ID, 10))
		result.UploadedIDs = append(result.UploadedIDs, img.ID)
	}

	rewritten, err := doc.Find("body").Html()
	if err != nil {
		return nil, fmt.Errorf("serializing content: %w", err)
	}
	result.HTML = rewritten
	return result, nil
}
