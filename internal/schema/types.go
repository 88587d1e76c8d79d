// Package schema provides the shared worship document model: ministers and
// their song lists, the schedule image gallery, the rehearsal notice and the
// audit log, in both draft and published form.
//
// The document is stored remotely as a single JSON blob and mirrored locally,
// so every type here is plain data with stable wire names. All mutation
// operations are pure: they take a document and return a new one, never
// touching the input.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// MusicKey is the transposed key a minister sings a song in.
// The values are display strings and are part of the wire format.
type MusicKey string

const (
	KeyC        MusicKey = "C (DÓ)"
	KeyD        MusicKey = "D (RÉ)"
	KeyE        MusicKey = "E (MI)"
	KeyF        MusicKey = "F (FÁ)"
	KeyG        MusicKey = "G (SOL)"
	KeyA        MusicKey = "A (LÁ)"
	KeyB        MusicKey = "B (SI)"
	KeyOriginal MusicKey = "ORIGINAL"
)

// MusicKeys lists every valid key in display order.
var MusicKeys = []MusicKey{KeyC, KeyD, KeyE, KeyF, KeyG, KeyA, KeyB, KeyOriginal}

// Valid reports whether k is one of the known keys.
func (k MusicKey) Valid() bool {
	for _, known := range MusicKeys {
		if k == known {
			return true
		}
	}
	return false
}

// Song is one entry in a minister's ordered song list.
type Song struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Key         MusicKey `json:"key"`
	YouTubeLink string   `json:"youtubeLink,omitempty"`
}

// Minister owns an ordered list of songs. Song order is insertion order and
// is display-significant.
type Minister struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Songs []Song `json:"songs"`
}

// ScaleImage is one uploaded schedule image, stored as an opaque data URI or
// remote URL. The gallery is newest-first.
type ScaleImage struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Date string `json:"date"`
}

// AuditEntry records one user action. Entries are prepended to the document
// log, newest first, and the log is bounded at MaxLogEntries.
type AuditEntry struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// MaxLogEntries bounds the audit log. Older entries are dropped.
const MaxLogEntries = 40

// Snapshot is one complete copy of the editable content. The document holds
// two: the draft that editors change and the published copy viewers see.
type Snapshot struct {
	Ministers     []Minister   `json:"ministers"`
	ScaleImages   []ScaleImage `json:"scaleImages"`
	RehearsalInfo string       `json:"rehearsalInfo"`
}

// Document is the full shared record persisted remotely.
type Document struct {
	Published Snapshot     `json:"published"`
	Draft     Snapshot     `json:"draft"`
	Logs      []AuditEntry `json:"logs"`
}

// Clone returns a deep copy of the snapshot. The copy shares no nested
// containers with the original.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Ministers:     make([]Minister, len(s.Ministers)),
		ScaleImages:   make([]ScaleImage, len(s.ScaleImages)),
		RehearsalInfo: s.RehearsalInfo,
	}
	for i, m := range s.Ministers {
		songs := make([]Song, len(m.Songs))
		copy(songs, m.Songs)
		out.Ministers[i] = Minister{ID: m.ID, Name: m.Name, Songs: songs}
	}
	copy(out.ScaleImages, s.ScaleImages)
	return out
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Published: *d.Published.Clone(),
		Draft:     *d.Draft.Clone(),
		Logs:      make([]AuditEntry, len(d.Logs)),
	}
	copy(out.Logs, d.Logs)
	return out
}

// Equal reports whether two documents have the same content. This is
// structural equality, deliberately insensitive to JSON key ordering.
func Equal(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Encode serializes the document for the remote store and local mirror.
func Encode(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// wireDocument accepts both the current draft/published layout and the
// legacy flat layout from before the split.
type wireDocument struct {
	Published *Snapshot    `json:"published"`
	Draft     *Snapshot    `json:"draft"`
	Logs      []AuditEntry `json:"logs"`

	// Legacy flat layout.
	Ministers     []Minister   `json:"ministers"`
	ScaleImages   []ScaleImage `json:"scaleImages"`
	RehearsalInfo string       `json:"rehearsalInfo"`
}

// Decode parses a document read from an untrusted source and sanitizes it.
// A legacy flat document is migrated into independent draft and published
// copies of the same content. Returns an error only if the bytes are not
// valid JSON; missing or malformed substructures are defaulted instead.
func Decode(data []byte) (*Document, error) {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("malformed document: %w", err)
	}

	var doc Document
	if w.Draft != nil || w.Published != nil {
		if w.Draft != nil {
			doc.Draft = *w.Draft
		}
		if w.Published != nil {
			doc.Published = *w.Published
		}
	} else {
		legacy := Snapshot{
			Ministers:     w.Ministers,
			ScaleImages:   w.ScaleImages,
			RehearsalInfo: w.RehearsalInfo,
		}
		doc.Draft = *legacy.Clone()
		doc.Published = *legacy.Clone()
	}
	doc.Logs = w.Logs

	return Sanitize(&doc), nil
}
