package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	ctx := context.Background()

	n, err := store.Put(ctx, "documents/p1/a.pdf", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes written, got %d", n)
	}

	rc, err := store.Open(ctx, "documents/p1/a.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "hello" {
		t.Fatalf("unexpected body %q", body)
	}

	if err := store.Delete(ctx, "documents/p1/a.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "documents/p1/a.pdf"); err != nil {
		t.Fatalf("deleting a missing object should succeed, got %v", err)
	}
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	if _, err := store.Put(context.Background(), "../escape.txt", strings.NewReader("x")); !errors.Is(err, ErrInvalidObjectKey) {
		t.Fatalf("expected ErrInvalidObjectKey, got %v", err)
	}
}

func TestObjectKeyKeepsExtension(t *testing.T) {
	key := ObjectKey("documents/p1", "Org Chart.PDF")
	if !strings.HasPrefix(key, "documents/p1/") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestURLSignerVerify(t *testing.T) {
	signer := NewURLSigner("secret", "http://api.local/", time.Minute, nil)
	link, err := signer.URL(context.Background(), "documents/p1/a.pdf")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	const prefix = "http://api.local/api/files/"
	if !strings.HasPrefix(link, prefix) {
		t.Fatalf("unexpected link %q", link)
	}

	key, err := signer.Verify(strings.TrimPrefix(link, prefix))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if key != "documents/p1/a.pdf" {
		t.Fatalf("unexpected key %q", key)
	}

	other := NewURLSigner("other", "http://api.local", time.Minute, nil)
	if _, err := other.Verify(strings.TrimPrefix(link, prefix)); !errors.Is(err, ErrInvalidDownloadLink) {
		t.Fatalf("expected ErrInvalidDownloadLink, got %v", err)
	}
}
