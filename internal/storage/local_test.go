package storage

import (
	"context"
	"errors"
	"testing"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	payload := []byte(`{"dataset":"orders","partitions":3}`)
	if err := store.Store(ctx, "manifests/orders/scheme.json", payload, map[string]string{"kind": "manifest"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := store.Retrieve(ctx, "manifests/orders/scheme.json")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("expected %q, got %q", payload, got)
	}

	meta := store.Metadata("manifests/orders/scheme.json")
	if meta["kind"] != "manifest" {
		t.Errorf("expected metadata kind=manifest, got %v", meta)
	}
}

func TestLocalStorageRetrieveMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	_, err = store.Retrieve(context.Background(), "manifests/missing/scheme.json")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorageListPrefix(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{
		"manifests/orders/scheme.json",
		"manifests/users/scheme.json",
		"datasets/orders/part-1",
	} {
		if err := store.Store(ctx, key, []byte("x"), nil); err != nil {
			t.Fatalf("Store %s failed: %v", key, err)
		}
	}

	keys, err := store.List(ctx, "manifests/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(keys), keys)
	}
	if keys[0] != "manifests/orders/scheme.json" || keys[1] != "manifests/users/scheme.json" {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestLocalStorageDeleteAndExists(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Store(ctx, "a/b", []byte("data"), nil); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	exists, err := store.Exists(ctx, "a/b")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	if err := store.Delete(ctx, "a/b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err = store.Exists(ctx, "a/b")
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to be gone")
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "a/b"); err != nil {
		t.Errorf("Delete of missing key returned error: %v", err)
	}
}

func TestLocalStorageCancelledContext(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Store(ctx, "k", []byte("v"), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
