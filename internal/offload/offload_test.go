package offload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"inkpress/internal/client"
)

// fakeUploader records uploads and hands back sequential ids.
type fakeUploader struct {
	mu          sync.Mutex
	uploads     []client.ImageUpload
	failPayload string // uploads with this payload fail
}

func (f *fakeUploader) UploadArticleImage(_ context.Context, up client.ImageUpload) (*client.UploadedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, up)
	if f.failPayload != "" && string(up.Data) == f.failPayload {
		return nil, errors.New("server down")
	}
	id := int64(len(f.uploads))
	return &client.UploadedImage{URL: fmt.Sprintf("/media/img-%d.png", id), ID: id}, nil
}

func pngDataURI(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestParseDataURI(t *testing.T) {
	uri, err := ParseDataURI(pngDataURI("hello"))
	if err != nil {
		t.Fatalf("ParseDataURI: %v", err)
	}
	if uri.MediaType != "image/png" || string(uri.Data) != "hello" {
		t.Errorf("unexpected result %+v", uri)
	}
	if uri.Ext() != "png" {
		t.Errorf("Ext() = %q, want png", uri.Ext())
	}
}

func TestParseDataURIMalformed(t *testing.T) {
	for _, src := range []string{
		"",
		"data:image/png;base64,",      // empty payload
		"data:image/png,rawdata",      // not base64-flagged
		"data:;base64,aGVsbG8=",       // missing media type
		"data:image/png;base64,!!!!",  // undecodable payload
		"https://example.com/img.png", // not a data URI at all
	} {
		if _, err := ParseDataURI(src); !errors.Is(err, ErrMalformedDataURI) {
			t.Errorf("ParseDataURI(%q): expected ErrMalformedDataURI, got %v", src, err)
		}
	}
}

func TestClassifySource(t *testing.T) {
	tests := []struct {
		src  string
		want SourceKind
	}{
		{"", SourceEmpty},
		{"   ", SourceEmpty},
		{"data:image/png;base64,aGk=", SourceData},
		{"https://example.com/a.png", SourceRemote},
		{"/media/abc.png", SourceRemote},
	}
	for _, tt := range tests {
		if got := ClassifySource(tt.src); got != tt.want {
			t.Errorf("ClassifySource(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestRewriteNoInlineImages(t *testing.T) {
	up := &fakeUploader{}
	o := New(up, 2)

	html := `<p>text</p><img src="/media/kept.png">`
	result, err := o.Rewrite(context.Background(), html, 1)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if result.HTML != html {
		t.Errorf("content changed without inline images: %q", result.HTML)
	}
	if len(up.uploads) != 0 {
		t.Errorf("expected no uploads, got %d", len(up.uploads))
	}
}

func TestRewriteUploadsAndRewrites(t *testing.T) {
	up := &fakeUploader{}
	o := New(up, 2)

	html := fmt.Sprintf(`<p>a</p><img src=%q><p>b</p><img src=%q>`,
		pngDataURI("one"), pngDataURI("two"))
	result, err := o.Rewrite(context.Background(), html, 42)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	if strings.Contains(result.HTML, "data:") {
		t.Errorf("rewritten content still carries a data URI: %q", result.HTML)
	}
	if !strings.Contains(result.HTML, "/media/img-1.png") && !strings.Contains(result.HTML, "/media/img-2.png") {
		t.Errorf("rewritten content missing hosted URLs: %q", result.HTML)
	}
	if !strings.Contains(result.HTML, "data-image-id=") {
		t.Errorf("rewritten images missing data-image-id: %q", result.HTML)
	}
	if len(result.UploadedIDs) != 2 || result.Failed != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	for _, u := range up.uploads {
		if u.Filename != "article-42.png" {
			t.Errorf("unexpected upload filename %q", u.Filename)
		}
		if u.ContentType != "image/png" {
			t.Errorf("unexpected content type %q", u.ContentType)
		}
	}
}

func TestRewritePartialFailure(t *testing.T) {
	up := &fakeUploader{failPayload: "one"}
	o := New(up, 1)

	html := fmt.Sprintf(`<img src=%q><img src=%q>`, pngDataURI("one"), pngDataURI("two"))
	result, err := o.Rewrite(context.Background(), html, 7)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if len(result.UploadedIDs) != 1 {
		t.Errorf("UploadedIDs = %v, want one id", result.UploadedIDs)
	}
	// The failed image stays inline for a later retry.
	if !strings.Contains(result.HTML, "data:image/png") {
		t.Errorf("failed image no longer inline: %q", result.HTML)
	}
	if !strings.Contains(result.HTML, "/media/img-") {
		t.Errorf("successful image not rewritten: %q", result.HTML)
	}
	if result.Images[0].Err == nil || result.Images[1].Err != nil {
		t.Errorf("per-image errors wrong: %+v", result.Images)
	}
}

func TestRewriteMalformedImageStaysInline(t *testing.T) {
	up := &fakeUploader{}
	o := New(up, 2)

	html := `<img src="data:image/png;base64,!!!!"><img src="` + pngDataURI("ok") + `">`
	result, err := o.Rewrite(context.Background(), html, 3)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if len(up.uploads) != 1 {
		t.Errorf("malformed image should not be uploaded, got %d uploads", len(up.uploads))
	}
	var malformed *Image
	for i := range result.Images {
		if result.Images[i].Err != nil {
			malformed = &result.Images[i]
		}
	}
	if malformed == nil || !errors.Is(malformed.Err, ErrMalformedDataURI) {
		t.Errorf("expected ErrMalformedDataURI in per-image outcomes: %+v", result.Images)
	}
}

func TestRewriteSecondPassIsNoOp(t *testing.T) {
	up := &fakeUploader{}
	o := New(up, 2)

	first, err := o.Rewrite(context.Background(), `<img src="`+pngDataURI("one")+`">`, 9)
	if err != nil {
		t.Fatalf("first Rewrite: %v", err)
	}

	second, err := o.Rewrite(context.Background(), first.HTML, 9)
	if err != nil {
		t.Fatalf("second Rewrite: %v", err)
	}
	if len(up.uploads) != 1 {
		t.Errorf("second pass re-uploaded hosted images: %d uploads", len(up.uploads))
	}
	if second.HTML != first.HTML {
		t.Errorf("second pass changed content:\n%q\n%q", first.HTML, second.HTML)
	}
}
