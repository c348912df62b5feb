package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestOpenLocalFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "hasil_klasifikasi.csv")
	if err := os.WriteFile(p, []byte("label,english_tweet\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := NewOpener(Options{}).Open(context.Background(), p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if src.Name != "hasil_klasifikasi.csv" || string(src.Data) != "label,english_tweet\n" || src.Key == "" {
		t.Fatalf("unexpected source: %+v", src)
	}
	if _, err := NewOpener(Options{}).Open(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestOpenHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/ulasan.csv":
			_, _ = io.WriteString(w, "komentar,sentimen\nbagus,positif\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o := NewOpener(Options{})
	src, err := o.Open(context.Background(), srv.URL+"/data/ulasan.csv")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if src.Name != "ulasan.csv" || !strings.HasPrefix(string(src.Data), "komentar") {
		t.Fatalf("unexpected source: %+v", src)
	}
	if _, err := o.Open(context.Background(), srv.URL+"/missing.csv"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}

	small := NewOpener(Options{MaxBytes: 8})
	if _, err := small.Open(context.Background(), srv.URL+"/data/ulasan.csv"); err == nil || !strings.Contains(err.Error(), "larger than") {
		t.Fatalf("expected size error, got %v", err)
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestOpenS3(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"labels/2024/hasil.csv": "label,english_tweet\nPositif,good\n"}}
	o := NewOpener(Options{}).WithS3Client(fake)

	src, err := o.Open(context.Background(), "s3://labels/2024/hasil.csv")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if src.Name != "hasil.csv" || !strings.Contains(string(src.Data), "Positif") {
		t.Fatalf("unexpected source: %+v", src)
	}
	if _, err := o.Open(context.Background(), "s3://labels/missing.csv"); err == nil || !strings.Contains(err.Error(), "s3://labels/missing.csv") {
		t.Fatalf("expected get error, got %v", err)
	}
	if _, err := o.Open(context.Background(), "s3://labels"); err == nil {
		t.Fatalf("expected malformed reference error")
	}
}

func TestFromUpload(t *testing.T) {
	a, err := FromUpload(`C:\Users\x\data.csv`, strings.NewReader("a"), 0)
	if err != nil {
		t.Fatalf("FromUpload: %v", err)
	}
	b, _ := FromUpload("other.csv", strings.NewReader("a"), 0)
	c, _ := FromUpload("/tmp/other.csv", strings.NewReader("a"), 0)
	if a.Name != "data.csv" {
		t.Fatalf("name = %q", a.Name)
	}
	if a.Key == b.Key {
		t.Fatalf("same bytes under another name should get another key")
	}
	if b.Key != c.Key {
		t.Fatalf("same name and content should share a key")
	}
	if _, err := FromUpload("big.csv", strings.NewReader("0123456789"), 4); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestIdentityDoesNotFetch(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = io.WriteString(w, "komentar,sentimen\n")
	}))
	defer srv.Close()

	o := NewOpener(Options{})
	k1, err := o.Identity(srv.URL + "/ulasan.csv")
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	k2, _ := o.Identity(srv.URL + "/ulasan.csv")
	if k1 == "" || k1 != k2 || hits != 0 {
		t.Fatalf("keys %q %q, hits %d", k1, k2, hits)
	}
	if k3, _ := o.Identity("s3://labels/hasil.csv"); k3 == k1 {
		t.Fatalf("different references share a key")
	}

	p := filepath.Join(t.TempDir(), "ulasan.csv")
	if err := os.WriteFile(p, []byte("komentar,sentimen\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	key, err := o.Identity(p)
	if err != nil {
		t.Fatalf("Identity(file): %v", err)
	}
	src, err := o.Open(context.Background(), p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if src.Key != key {
		t.Fatalf("Identity %q does not match Open key %q", key, src.Key)
	}
	if _, err := o.Identity(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
