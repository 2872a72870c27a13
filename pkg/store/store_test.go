package store

import (
	"path/filepath"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Set("user_links", "slack:U111", []byte(`{"platform_b_id":"ou_1"}`)); err != nil {
		t.Fatal(err)
	}

	v, ok, err := s.Get("user_links", "slack:U111")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v, %v", v, ok, err)
	}
	if string(v) != `{"platform_b_id":"ou_1"}` {
		t.Errorf("value = %s", v)
	}

	if _, ok, _ := s.Get("user_links", "slack:U404"); ok {
		t.Error("absent key reported present")
	}
}

func TestFileStore_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("mappings", "C111", []byte(`{"target_channel_id":"oc_1"}`)); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	v, ok, err := reopened.Get("mappings", "C111")
	if err != nil || !ok {
		t.Fatalf("Get after reopen = %v, %v, %v", v, ok, err)
	}
	if string(v) != `{"target_channel_id":"oc_1"}` {
		t.Errorf("value = %s", v)
	}
}

func TestFileStore_DeleteAndList(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("b", "k1", []byte(`1`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("b", "k2", []byte(`2`)); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete("b", "k1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("b", "nope"); err != nil {
		t.Errorf("deleting absent key should be a no-op, got %v", err)
	}

	records, err := s.List("b")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || string(records["k2"]) != "2" {
		t.Errorf("List = %v", records)
	}

	empty, err := s.List("missing-bucket")
	if err != nil || len(empty) != 0 {
		t.Errorf("List on missing bucket = %v, %v", empty, err)
	}
}

func TestFileStore_RejectsTraversalBucketName(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, bucket := range []string{"", "  ", "../escape", "a/b", `a\b`} {
		if err := s.Set(bucket, "k", []byte(`{}`)); err == nil {
			t.Errorf("bucket %q accepted", bucket)
		}
	}
}

func TestFileStore_RejectsInvalidJSON(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("b", "k", []byte("not json")); err == nil {
		t.Error("expected error for invalid JSON record")
	}
}

func TestFileStore_BucketFileLocation(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("user_links", "k", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "user_links.json"))
	if len(matches) != 1 {
		t.Errorf("expected user_links.json in %s", dir)
	}
}
