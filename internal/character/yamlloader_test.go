package character

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCatalogYAML = `
characters:
  - id: li-lingyue
    name: Li Lingyue
    role: tavern keeper
    personality: warm but careful
    knowledge:
      - "Travelers have been arriving with strange coins."
    revealable:
      portal-night:
        content: "She saw a man walk out of the portal backwards."
        condition: "trust >= 60"
  - id: old-wen
    name: Old Wen
    role: village blacksmith
`

func TestLoadCatalogFromReader(t *testing.T) {
	cat, err := LoadCatalogFromReader(strings.NewReader(sampleCatalogYAML))
	if err != nil {
		t.Fatalf("LoadCatalogFromReader: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("len = %d, want 2", cat.Len())
	}

	id, err := cat.Get("li-lingyue")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if id.Role != "tavern keeper" {
		t.Errorf("role = %q", id.Role)
	}
	if len(id.Knowledge) != 1 {
		t.Errorf("knowledge = %v", id.Knowledge)
	}
	if info, ok := id.Revealable["portal-night"]; !ok || info.Condition != "trust >= 60" {
		t.Errorf("revealable = %+v", id.Revealable)
	}
}

func TestLoadCatalogFromReaderRejectsUnknownFields(t *testing.T) {
	yaml := `
characters:
  - id: x
    name: X
    role: r
    voice: deep
`
	if _, err := LoadCatalogFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field should be rejected")
	}
}

func TestLoadCatalogFromReaderRejectsInvalidEntry(t *testing.T) {
	yaml := `
characters:
  - id: x
    name: X
`
	_, err := LoadCatalogFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("entry without role should be rejected")
	}
	if !strings.Contains(err.Error(), "entry 0") {
		t.Errorf("error should name the entry index, got: %v", err)
	}
}

func TestLoadCatalogFromReaderRejectsDuplicateIDs(t *testing.T) {
	yaml := `
characters:
  - id: x
    name: X
    role: r
  - id: x
    name: Y
    role: r
`
	if _, err := LoadCatalogFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("duplicate ids should be rejected")
	}
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "characters.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalogYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cat, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("len = %d, want 2", cat.Len())
	}
}

func TestLoadCatalogFileMissing(t *testing.T) {
	_, err := LoadCatalogFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("missing file should error")
	}
}
