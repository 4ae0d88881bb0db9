package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Retrieval.VerbatimShare != 0.7 {
		t.Errorf("VerbatimShare = %v, want 0.7", cfg.Retrieval.VerbatimShare)
	}
	if cfg.Retrieval.TokensPerChunk != 150 {
		t.Errorf("TokensPerChunk = %d, want 150", cfg.Retrieval.TokensPerChunk)
	}
	if cfg.Backend.Interpreter != "python" {
		t.Errorf("Interpreter = %q, want python", cfg.Backend.Interpreter)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
backend:
  interpreter: python3
  script_path: /opt/elara/rag_backend.py
  storage_path: /var/lib/elara
retrieval:
  verbatim_share: 0.5
  recent_turns_count: 8
logging:
  debug: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend.Interpreter != "python3" {
		t.Errorf("Interpreter = %q, want python3", cfg.Backend.Interpreter)
	}
	if cfg.Retrieval.VerbatimShare != 0.5 {
		t.Errorf("VerbatimShare = %v, want 0.5", cfg.Retrieval.VerbatimShare)
	}
	if cfg.Retrieval.RecentTurnsCount != 8 {
		t.Errorf("RecentTurnsCount = %d, want 8", cfg.Retrieval.RecentTurnsCount)
	}
	if !cfg.Logging.Debug {
		t.Error("Debug = false, want true")
	}
	// Unset sections keep their defaults.
	if cfg.Retrieval.TokensPerChunk != 150 {
		t.Errorf("TokensPerChunk = %d, want default 150", cfg.Retrieval.TokensPerChunk)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Backend.StoragePath = "/somewhere"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Backend.StoragePath != "/somewhere" {
		t.Errorf("StoragePath = %q, want /somewhere", loaded.Backend.StoragePath)
	}
}

func TestProviderStoreLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")
	content := `{
  "customApis": {
    "Acme AI": {
      "apiKey": "k1",
      "completionsUrl": "https://api.acme.ai/v1/chat/completions",
      "customPayload": {"top_p": 0.9}
    }
  }
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := LoadProviderStore(path)
	if err != nil {
		t.Fatalf("LoadProviderStore returned error: %v", err)
	}
	cfg, ok := store.Lookup("Acme AI")
	if !ok {
		t.Fatal("Lookup failed for stored provider")
	}
	if cfg.Name != "Acme AI" {
		t.Errorf("Name = %q, want map key as fallback name", cfg.Name)
	}
	if cfg.APIKey != "k1" {
		t.Errorf("APIKey = %q, want k1", cfg.APIKey)
	}
	if cfg.ExtraPayload["top_p"] != 0.9 {
		t.Errorf("ExtraPayload top_p = %v, want 0.9", cfg.ExtraPayload["top_p"])
	}
	if _, ok := store.Lookup("Unknown"); ok {
		t.Error("Lookup succeeded for unknown provider")
	}
}

func TestProviderStoreMissingFile(t *testing.T) {
	store, err := LoadProviderStore(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadProviderStore returned error: %v", err)
	}
	if got := len(store.Names()); got != 0 {
		t.Errorf("Names() len = %d, want 0", got)
	}
}

func TestProviderStoreWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.json")
	if err := os.WriteFile(path, []byte(`{"customApis": {}}`), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := LoadProviderStore(path)
	if err != nil {
		t.Fatalf("LoadProviderStore returned error: %v", err)
	}

	done := make(chan struct{})
	defer close(done)
	go store.Watch(done)

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := `{"customApis": {"Late": {"apiKey": "k", "completionsUrl": "https://late.example/v1"}}}`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		if _, ok := store.Lookup("Late"); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("store never picked up the updated provider file")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestLoadPersonas(t *testing.T) {
	t.Run("missing file uses builtins", func(t *testing.T) {
		personas, err := LoadPersonas(filepath.Join(t.TempDir(), "nope.yaml"))
		if err != nil {
			t.Fatalf("LoadPersonas returned error: %v", err)
		}
		if _, ok := FindPersona(personas, "elara"); !ok {
			t.Error("built-in persona elara missing")
		}
	})

	t.Run("file overrides builtins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "personas.yaml")
		content := `
personas:
  - name: kestrel
    system_prompt: You are Kestrel.
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		personas, err := LoadPersonas(path)
		if err != nil {
			t.Fatalf("LoadPersonas returned error: %v", err)
		}
		p, ok := FindPersona(personas, "Kestrel")
		if !ok {
			t.Fatal("FindPersona failed, want case-insensitive match")
		}
		if p.SystemPrompt != "You are Kestrel." {
			t.Errorf("SystemPrompt = %q", p.SystemPrompt)
		}
		if _, ok := FindPersona(personas, "elara"); ok {
			t.Error("builtins should not leak when a file is present")
		}
	})

	t.Run("unnamed persona rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "personas.yaml")
		if err := os.WriteFile(path, []byte("personas:\n  - system_prompt: x\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadPersonas(path); err == nil {
			t.Error("LoadPersonas succeeded, want error")
		}
	})
}
