package schema

import (
	"testing"
)

func TestSanitizeNil(t *testing.T) {
	doc := Sanitize(nil)
	if doc.Draft.Ministers == nil || doc.Draft.ScaleImages == nil || doc.Logs == nil {
		t.Error("sanitized nil document has nil collections")
	}
	if len(doc.Draft.Ministers) != 0 || len(doc.Published.Ministers) != 0 {
		t.Error("sanitized nil document is not empty")
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	dirty := &Document{
		Draft: Snapshot{
			Ministers: []Minister{
				{ID: "m1", Name: "Ana", Songs: nil},
				{ID: "m2", Name: "Bia", Songs: []Song{{ID: "s1", Title: "T", Artist: "A", Key: "H#"}}},
			},
		},
	}

	once := Sanitize(dirty)
	twice := Sanitize(once)
	if !Equal(once, twice) {
		t.Error("sanitize is not idempotent")
	}
}

func TestSanitizeWellFormedFixedPoint(t *testing.T) {
	doc, _, _ := testDoc(t)
	if !Equal(doc, Sanitize(doc)) {
		t.Error("sanitizing a well-formed document changed it")
	}
}

func TestSanitizeDefaults(t *testing.T) {
	dirty := &Document{
		Draft: Snapshot{
			Ministers: []Minister{{ID: "m1", Name: "Ana"}},
		},
		Logs: nil,
	}

	clean := Sanitize(dirty)
	if clean.Draft.Ministers[0].Songs == nil {
		t.Error("nil song list not defaulted")
	}
	if clean.Draft.ScaleImages == nil || clean.Published.ScaleImages == nil {
		t.Error("nil image galleries not defaulted")
	}
	if clean.Logs == nil {
		t.Error("nil log not defaulted")
	}
}

func TestSanitizeInvalidKey(t *testing.T) {
	dirty := &Document{
		Draft: Snapshot{
			Ministers: []Minister{{
				ID:   "m1",
				Name: "Ana",
				Songs: []Song{
					{ID: "s1", Title: "T", Artist: "A", Key: "banana"},
					{ID: "s2", Title: "T2", Artist: "A2", Key: KeyG},
				},
			}},
		},
	}

	clean := Sanitize(dirty)
	songs := clean.Draft.Ministers[0].Songs
	if songs[0].Key != KeyOriginal {
		t.Errorf("invalid key not defaulted: %q", songs[0].Key)
	}
	if songs[1].Key != KeyG {
		t.Errorf("valid key changed: %q", songs[1].Key)
	}
}

func TestSanitizeBoundsLogs(t *testing.T) {
	dirty := &Document{}
	for i := 0; i < MaxLogEntries+25; i++ {
		dirty.Logs = append(dirty.Logs, AuditEntry{ID: NewID(), User: "u", Action: "a"})
	}
	if got := len(Sanitize(dirty).Logs); got != MaxLogEntries {
		t.Errorf("expected %d log entries, got %d", MaxLogEntries, got)
	}
}

func TestDecodeEmptyObject(t *testing.T) {
	doc, err := Decode([]byte(`{}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.Draft.Ministers == nil || doc.Published.Ministers == nil || doc.Logs == nil {
		t.Error("decoded empty object has nil collections")
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := Decode([]byte(`"just a string"`)); err == nil {
		t.Error("expected error for non-object JSON")
	}
}

func TestDecodeLegacyFlatLayout(t *testing.T) {
	legacy := []byte(`{
		"ministers": [{"id": "m1", "name": "Ana", "songs": [
			{"id": "s1", "title": "Grace", "artist": "X", "key": "ORIGINAL"}
		]}],
		"scaleImages": [],
		"rehearsalInfo": "quarta 19:30",
		"logs": []
	}`)

	doc, err := Decode(legacy)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	// The flat content is migrated into both snapshots.
	if len(doc.Draft.Ministers) != 1 || len(doc.Published.Ministers) != 1 {
		t.Fatalf("legacy content not migrated: draft=%d published=%d",
			len(doc.Draft.Ministers), len(doc.Published.Ministers))
	}
	if doc.Draft.RehearsalInfo != "quarta 19:30" {
		t.Errorf("unexpected notice %q", doc.Draft.RehearsalInfo)
	}

	// The two snapshots must not alias each other.
	doc.Draft.Ministers[0].Songs[0].Title = "Edited"
	if doc.Published.Ministers[0].Songs[0].Title != "Grace" {
		t.Error("draft and published share song storage after migration")
	}
}

func TestDecodeCurrentLayoutRoundTrip(t *testing.T) {
	doc, _, _ := testDoc(t)

	data, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !Equal(doc, back) {
		t.Error("document changed across encode/decode")
	}
}
