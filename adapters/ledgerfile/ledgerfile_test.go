package ledgerfile_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tubegate/tubegate/adapters/ledgerfile"
	"github.com/tubegate/tubegate/domain/quota"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestLoad_MissingFileStartsFresh(t *testing.T) {
	store := ledgerfile.New(filepath.Join(t.TempDir(), "quota_usage.json"))

	_, found, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if found {
		t.Error("missing file must report found=false")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quota_usage.json")
	store := ledgerfile.New(path)

	state := quota.NewState(10000, baseTime)
	state = quota.Consume(state, quota.OpVideoUpload, "movie.mp4", baseTime)

	if err := store.Save(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	loaded, found, err := store.Load(context.Background())
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if loaded.Used != 1600 || loaded.Remaining != 8400 {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Operations) != 1 || loaded.Operations[0].Details != "movie.mp4" {
		t.Errorf("audit log = %+v", loaded.Operations)
	}
	if !loaded.ResetTime.Equal(state.ResetTime) {
		t.Errorf("reset time = %v, want %v", loaded.ResetTime, state.ResetTime)
	}
}

func TestSave_DocumentFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota_usage.json")
	store := ledgerfile.New(path)

	state := quota.NewState(10000, baseTime)
	state = quota.Consume(state, quota.OpVideoUpload, "", baseTime)
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"daily_quota", "used_quota", "remaining_quota", "reset_time", "operations"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("document missing %q: %v", key, doc)
		}
	}
}

func TestLoad_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota_usage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := ledgerfile.New(path)
	if _, _, err := store.Load(context.Background()); err == nil {
		t.Error("corrupt document must error")
	}
}

func TestSave_OverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota_usage.json")
	store := ledgerfile.New(path)

	first := quota.NewState(10000, baseTime)
	if err := store.Save(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	second := quota.Consume(first, quota.OpVideoList, "", baseTime)
	if err := store.Save(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	loaded, _, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Used != 1 {
		t.Errorf("used = %d, want 1", loaded.Used)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}
