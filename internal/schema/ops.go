package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mutation errors. An operation returning an error produces no new document
// and must not be synced or logged.
var (
	// ErrEmptyField indicates a required text field was empty after trimming.
	ErrEmptyField = errors.New("required field is empty")
	// ErrNotFound indicates the target minister or song does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidKey indicates an unknown music key.
	ErrInvalidKey = errors.New("invalid music key")
)

// DisplayTimestamp formats a time the way audit entries display it.
func DisplayTimestamp(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

// DisplayDate formats a time the way schedule image dates display it.
func DisplayDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// withLog prepends one audit entry to the document log, dropping the oldest
// entries beyond MaxLogEntries. The document is mutated in place; callers
// pass only freshly cloned documents.
func withLog(doc *Document, user, action string) *Document {
	entry := AuditEntry{
		ID:        NewID(),
		User:      user,
		Action:    action,
		Timestamp: DisplayTimestamp(time.Now()),
	}
	logs := make([]AuditEntry, 0, len(doc.Logs)+1)
	logs = append(logs, entry)
	for _, old := range doc.Logs {
		if len(logs) == MaxLogEntries {
			break
		}
		logs = append(logs, old)
	}
	doc.Logs = logs
	return doc
}

// AddMinister appends a minister with an empty song list to the draft.
func AddMinister(doc *Document, actor, name string) (*Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyField
	}

	next := doc.Clone()
	next.Draft.Ministers = append(next.Draft.Ministers, Minister{
		ID:    NewID(),
		Name:  name,
		Songs: []Song{},
	})
	return withLog(next, actor, "added minister "+name), nil
}

// DeleteMinister removes a minister and all their songs from the draft.
func DeleteMinister(doc *Document, actor, ministerID string) (*Document, error) {
	next := doc.Clone()
	kept := make([]Minister, 0, len(next.Draft.Ministers))
	var name string
	found := false
	for _, m := range next.Draft.Ministers {
		if m.ID == ministerID {
			name = m.Name
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		return nil, fmt.Errorf("minister %s: %w", ministerID, ErrNotFound)
	}
	next.Draft.Ministers = kept
	return withLog(next, actor, "removed minister "+name), nil
}

// AddSong appends a song to a minister's list in the draft. The song starts
// in the ORIGINAL key with no link.
func AddSong(doc *Document, actor, ministerID, title, artist string) (*Document, error) {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	if title == "" || artist == "" {
		return nil, ErrEmptyField
	}

	next := doc.Clone()
	minister := findMinister(&next.Draft, ministerID)
	if minister == nil {
		return nil, fmt.Errorf("minister %s: %w", ministerID, ErrNotFound)
	}
	minister.Songs = append(minister.Songs, Song{
		ID:     NewID(),
		Title:  title,
		Artist: artist,
		Key:    KeyOriginal,
	})
	return withLog(next, actor, fmt.Sprintf("added song %q for %s", title, minister.Name)), nil
}

// SongUpdate carries a partial song edit. Nil fields are left unchanged.
type SongUpdate struct {
	Title       *string
	Artist      *string
	Key         *MusicKey
	YouTubeLink *string
}

// UpdateSong applies a partial edit to a song in the draft. Title and artist
// edits that trim to empty are rejected; the link may be cleared.
func UpdateSong(doc *Document, actor, ministerID, songID string, update SongUpdate) (*Document, error) {
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, ErrEmptyField
	}
	if update.Artist != nil && strings.TrimSpace(*update.Artist) == "" {
		return nil, ErrEmptyField
	}
	if update.Key != nil && !update.Key.Valid() {
		return nil, ErrInvalidKey
	}

	next := doc.Clone()
	minister := findMinister(&next.Draft, ministerID)
	if minister == nil {
		return nil, fmt.Errorf("minister %s: %w", ministerID, ErrNotFound)
	}
	song := findSong(minister, songID)
	if song == nil {
		return nil, fmt.Errorf("song %s: %w", songID, ErrNotFound)
	}

	if update.Title != nil {
		song.Title = strings.TrimSpace(*update.Title)
	}
	if update.Artist != nil {
		song.Artist = strings.TrimSpace(*update.Artist)
	}
	if update.Key != nil {
		song.Key = *update.Key
	}
	if update.YouTubeLink != nil {
		song.YouTubeLink = strings.TrimSpace(*update.YouTubeLink)
	}
	return withLog(next, actor, fmt.Sprintf("updated song %q for %s", song.Title, minister.Name)), nil
}

// DeleteSong removes a song from a minister's list in the draft.
func DeleteSong(doc *Document, actor, ministerID, songID string) (*Document, error) {
	next := doc.Clone()
	minister := findMinister(&next.Draft, ministerID)
	if minister == nil {
		return nil, fmt.Errorf("minister %s: %w", ministerID, ErrNotFound)
	}

	kept := make([]Song, 0, len(minister.Songs))
	var title string
	found := false
	for _, song := range minister.Songs {
		if song.ID == songID {
			title = song.Title
			found = true
			continue
		}
		kept = append(kept, song)
	}
	if !found {
		return nil, fmt.Errorf("song %s: %w", songID, ErrNotFound)
	}
	minister.Songs = kept
	return withLog(next, actor, fmt.Sprintf("removed song %q from %s", title, minister.Name)), nil
}

// SetRehearsalNotice replaces the draft rehearsal notice as a whole. An
// empty notice is allowed; it clears the board.
func SetRehearsalNotice(doc *Document, actor, text string) (*Document, error) {
	next := doc.Clone()
	next.Draft.RehearsalInfo = text
	return withLog(next, actor, "updated rehearsal notice"), nil
}

// AddScaleImage prepends a schedule image to the draft gallery, newest
// first. The date is a display string; when empty, today's date is used.
func AddScaleImage(doc *Document, actor, url, date string) (*Document, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyField
	}
	if date == "" {
		date = DisplayDate(time.Now())
	}

	next := doc.Clone()
	images := make([]ScaleImage, 0, len(next.Draft.ScaleImages)+1)
	images = append(images, ScaleImage{ID: NewID(), URL: url, Date: date})
	images = append(images, next.Draft.ScaleImages...)
	next.Draft.ScaleImages = images
	return withLog(next, actor, "added schedule image"), nil
}

// DeleteScaleImage removes a schedule image from the draft gallery.
func DeleteScaleImage(doc *Document, actor, imageID string) (*Document, error) {
	next := doc.Clone()
	kept := next.Draft.ScaleImages[:0]
	found := false
	for _, img := range next.Draft.ScaleImages {
		if img.ID == imageID {
			found = true
			continue
		}
		kept = append(kept, img)
	}
	if !found {
		return nil, fmt.Errorf("schedule image %s: %w", imageID, ErrNotFound)
	}
	next.Draft.ScaleImages = kept
	return withLog(next, actor, "removed schedule image"), nil
}

// Promote copies the draft into the published snapshot. The copy is deep:
// later draft edits never reach the published snapshot until the next
// promote. The draft itself is unchanged.
func Promote(doc *Document, actor string) (*Document, error) {
	next := doc.Clone()
	next.Published = *next.Draft.Clone()
	return withLog(next, actor, "published draft changes"), nil
}

func findMinister(s *Snapshot, ministerID string) *Minister {
	for i := range s.Ministers {
		if s.Ministers[i].ID == ministerID {
			return &s.Ministers[i]
		}
	}
	return nil
}

func findSong(m *Minister, songID string) *Song {
	for i := range m.Songs {
		if m.Songs[i].ID == songID {
			return &m.Songs[i]
		}
	}
	return nil
}
