package schema

// Sanitize normalizes an untrusted document into a well-formed one. Missing
// collections become empty slices, nested song lists are never nil, and
// unknown music keys fall back to ORIGINAL. The result shares no memory with
// the input.
//
// Sanitize is total and idempotent: it never fails, and sanitizing an
// already well-formed document returns an equal document.
func Sanitize(doc *Document) *Document {
	if doc == nil {
		return &Document{
			Published: *sanitizeSnapshot(nil),
			Draft:     *sanitizeSnapshot(nil),
			Logs:      []AuditEntry{},
		}
	}

	out := &Document{
		Published: *sanitizeSnapshot(&doc.Published),
		Draft:     *sanitizeSnapshot(&doc.Draft),
		Logs:      make([]AuditEntry, 0, len(doc.Logs)),
	}
	for _, entry := range doc.Logs {
		if len(out.Logs) == MaxLogEntries {
			break
		}
		out.Logs = append(out.Logs, entry)
	}
	return out
}

func sanitizeSnapshot(s *Snapshot) *Snapshot {
	if s == nil {
		return &Snapshot{Ministers: []Minister{}, ScaleImages: []ScaleImage{}}
	}

	out := &Snapshot{
		Ministers:     make([]Minister, 0, len(s.Ministers)),
		ScaleImages:   make([]ScaleImage, 0, len(s.ScaleImages)),
		RehearsalInfo: s.RehearsalInfo,
	}
	for _, m := range s.Ministers {
		songs := make([]Song, 0, len(m.Songs))
		for _, song := range m.Songs {
			if !song.Key.Valid() {
				song.Key = KeyOriginal
			}
			songs = append(songs, song)
		}
		out.Ministers = append(out.Ministers, Minister{ID: m.ID, Name: m.Name, Songs: songs})
	}
	out.ScaleImages = append(out.ScaleImages, s.ScaleImages...)
	return out
}
