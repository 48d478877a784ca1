package blob

import (
	"context"
	"io"
	"strings"
	"testing"
)

func newTestFilesystem(t *testing.T) *Filesystem {
	t.Helper()
	f, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	return f
}

func TestFilesystemRoundTrip(t *testing.T) {
	f := newTestFilesystem(t)
	ctx := context.Background()

	info, err := f.Put(ctx, "exports/herd-1.jsonl", strings.NewReader("line1\n"), PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"contract_version": "2026-08.1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" {
		t.Fatal("etag should carry the content digest")
	}
	if info.Size != 6 {
		t.Fatalf("size: got %d", info.Size)
	}

	head, err := f.Head(ctx, "exports/herd-1.jsonl")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ETag != info.ETag || head.Metadata["contract_version"] != "2026-08.1" {
		t.Fatalf("head metadata wrong: %+v", head)
	}

	got, rc, err := f.Get(ctx, "exports/herd-1.jsonl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "line1\n" || got.Size != 6 {
		t.Fatalf("content lost: %q %+v", data, got)
	}
}

func TestFilesystemPutIsCreateOnly(t *testing.T) {
	f := newTestFilesystem(t)
	ctx := context.Background()
	if _, err := f.Put(ctx, "k", strings.NewReader("a"), PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := f.Put(ctx, "k", strings.NewReader("b"), PutOptions{}); err == nil {
		t.Fatal("overwrite should fail")
	}
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	f := newTestFilesystem(t)
	ctx := context.Background()
	for _, key := range []string{"", "   ", "../escape", "/absolute", "a/../../b"} {
		if _, err := f.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("key %q should be rejected", key)
		}
	}
}

func TestFilesystemDeleteAndList(t *testing.T) {
	f := newTestFilesystem(t)
	ctx := context.Background()
	for _, key := range []string{"exports/b", "exports/a"} {
		if _, err := f.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := f.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "exports/a" {
		t.Fatalf("list wrong: %+v", infos)
	}

	existed, err := f.Delete(ctx, "exports/a")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = f.Delete(ctx, "exports/a")
	if err != nil || existed {
		t.Fatalf("second delete should be (false, nil): existed=%v err=%v", existed, err)
	}
}

func TestFilesystemPresignIsLocalURL(t *testing.T) {
	f := newTestFilesystem(t)
	url, err := f.PresignURL(context.Background(), "exports/a", SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "local.blob") {
		t.Fatalf("expected local pseudo url, got %s", url)
	}
	if _, err := f.PresignURL(context.Background(), "exports/a", SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatal("PUT presign should be unsupported")
	}
}
