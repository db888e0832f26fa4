package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3":     NewMockS3ForTests(),
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			payload := []byte(`{"state":"INVALID"}`)
			opts := PutOptions{ContentType: "application/json", Metadata: map[string]string{"program": "SUMARiS"}}

			info, err := store.Put(ctx, "reports/op-1/a.json", bytes.NewReader(payload), opts)
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Key != "reports/op-1/a.json" || info.Size != int64(len(payload)) {
				t.Fatalf("unexpected info %+v", info)
			}
			if _, err := store.Put(ctx, "reports/op-1/a.json", strings.NewReader("again"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			if _, err := store.Put(ctx, "reports/op-2/b.csv", strings.NewReader("label\n"), PutOptions{ContentType: "text/csv"}); err != nil {
				t.Fatalf("put second: %v", err)
			}

			got, rc, err := store.Get(ctx, "reports/op-1/a.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if !bytes.Equal(body, payload) || got.ContentType != "application/json" {
				t.Fatalf("unexpected blob %q %+v", body, got)
			}
			head, err := store.Head(ctx, "reports/op-1/a.json")
			if err != nil || head.Metadata["program"] != "SUMARiS" {
				t.Fatalf("unexpected head %+v err=%v", head, err)
			}

			list, err := store.List(ctx, "reports/op-1/")
			if err != nil || len(list) != 1 || list[0].Key != "reports/op-1/a.json" {
				t.Fatalf("unexpected prefix list %+v err=%v", list, err)
			}
			all, err := store.List(ctx, "")
			if err != nil || len(all) != 2 || all[0].Key > all[1].Key {
				t.Fatalf("expected two keys in order, got %+v err=%v", all, err)
			}

			if _, err := store.Head(ctx, "reports/missing.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on head, got %v", err)
			}
			if _, _, err := store.Get(ctx, "reports/missing.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on get, got %v", err)
			}
			existed, err := store.Delete(ctx, "reports/op-1/a.json")
			if err != nil || !existed {
				t.Fatalf("expected delete, got %v %v", existed, err)
			}
			existed, err = store.Delete(ctx, "reports/op-1/a.json")
			if err != nil || existed {
				t.Fatalf("expected missing delete, got %v %v", existed, err)
			}
		})
	}
}

func TestOpenFromEnv(t *testing.T) {
	ctx := context.Background()
	t.Run("default fs", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "reports")
		t.Setenv("CATCHCORE_BLOB_DRIVER", "")
		t.Setenv("CATCHCORE_BLOB_FS_ROOT", root)
		store, err := Open(ctx)
		if err != nil || store.Driver() != DriverFilesystem {
			t.Fatalf("expected fs store, got %v %v", store, err)
		}
	})
	t.Run("memory", func(t *testing.T) {
		t.Setenv("CATCHCORE_BLOB_DRIVER", "memory")
		store, err := Open(ctx)
		if err != nil || store.Driver() != DriverMemory {
			t.Fatalf("expected memory store, got %v %v", store, err)
		}
	})
	t.Run("s3 requires bucket", func(t *testing.T) {
		t.Setenv("CATCHCORE_BLOB_DRIVER", "s3")
		t.Setenv("CATCHCORE_BLOB_S3_BUCKET", "")
		if _, err := Open(ctx); err == nil || !strings.Contains(err.Error(), "CATCHCORE_BLOB_S3_BUCKET") {
			t.Fatalf("expected bucket error, got %v", err)
		}
	})
	t.Run("s3", func(t *testing.T) {
		t.Setenv("CATCHCORE_BLOB_DRIVER", "s3")
		t.Setenv("CATCHCORE_BLOB_S3_BUCKET", "catch-reports")
		t.Setenv("CATCHCORE_BLOB_S3_ENDPOINT", "http://127.0.0.1:9000")
		t.Setenv("CATCHCORE_BLOB_S3_PATH_STYLE", "true")
		t.Setenv("CATCHCORE_BLOB_S3_ACCESS_KEY_ID", "minio")
		t.Setenv("CATCHCORE_BLOB_S3_SECRET_ACCESS_KEY", "minio123")
		store, err := Open(ctx)
		if err != nil || store.Driver() != DriverS3 {
			t.Fatalf("expected s3 store, got %v %v", store, err)
		}
	})
	t.Run("unknown", func(t *testing.T) {
		t.Setenv("CATCHCORE_BLOB_DRIVER", "gcs")
		if _, err := Open(ctx); err == nil {
			t.Fatalf("expected unknown driver error")
		}
	})
}

func TestPresignURL(t *testing.T) {
	ctx := context.Background()
	stores := backends(t)
	if _, err := stores["memory"].PresignURL(ctx, "k", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("memory presign must be unsupported, got %v", err)
	}
	url, err := stores["fs"].PresignURL(ctx, "reports/a.json", SignedURLOptions{})
	if err != nil || url != "http://local.blob/reports/a.json" {
		t.Fatalf("unexpected fs url %q %v", url, err)
	}
	if _, err := stores["fs"].PresignURL(ctx, "k", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected unsupported method, got %v", err)
	}
	url, err = stores["s3"].PresignURL(ctx, "reports/a.json", SignedURLOptions{})
	if err != nil || !strings.Contains(url, "reports/a.json") || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("unexpected s3 url %q %v", url, err)
	}
}
