package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "config.json"))
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != (Settings{}) {
		t.Errorf("expected zero settings, got %+v", got)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	s := NewStore(path)
	want := Settings{
		IndexDir:   "/var/lib/lineidx",
		LogLevel:   "debug,lines=warn",
		LogFormat:  "json",
		ServerAddr: ":9000",
		WatchPoll:  "5s",
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("round trip: want %+v, got %+v", want, got)
	}

	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), `"version": 1`) {
		t.Errorf("expected versioned envelope, got %s", raw)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"garbage", "{not json", "parse config file"},
		{"unversioned", `{"settings":{}}`, "unversioned"},
		{"newer", `{"version":99,"settings":{}}`, "newer than supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := NewStore(path).Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPollInterval(t *testing.T) {
	d, err := Settings{}.PollInterval(30 * time.Second)
	if err != nil || d != 30*time.Second {
		t.Errorf("default: got %v %v", d, err)
	}
	d, err = Settings{WatchPoll: "2m"}.PollInterval(time.Second)
	if err != nil || d != 2*time.Minute {
		t.Errorf("2m: got %v %v", d, err)
	}
	if _, err := (Settings{WatchPoll: "soon"}).PollInterval(time.Second); err == nil {
		t.Error("expected parse error")
	}
	if _, err := (Settings{WatchPoll: "-1s"}).PollInterval(time.Second); err == nil {
		t.Error("expected error for negative interval")
	}
}
