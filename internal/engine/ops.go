package engine

import "louvor/internal/schema"

// The mutation methods below are the only way the document changes locally.
// Each one applies a pure schema operation to the draft, mirrors the result
// synchronously, and schedules a debounced remote write. A validation error
// (empty field, unknown id) is a complete no-op: no mutation, no log entry,
// no network call.

// AddMinister adds a minister with an empty song list to the draft.
func (e *Engine) AddMinister(name string) error {
	return e.apply(func(doc *schema.Document) (*schema.Document, error) {
		return schema.AddMinister(doc, e.cfg.Actor, name)
	}, false)
}

// DeleteMinister removes a minister and their songs from the draft.
func (e *Engine) DeleteMinister(ministerID string) error {
	return e.apply(func(doc *schema.Document) (*schema.Document, error) {
		return schema.DeleteMinister(doc, e.cfg.Actor, ministerID)
	}, false)
}

// AddSong appends a song to a minister's draft list.
func (e *Engine) AddSong(ministerID, title, artist string) error {
	return e.apply(func(doc *schema.Document) (*schema.Document, error) {
		return schema.AddSong(doc, e.cfg.Actor, ministerID, title, artist)
	}, false)
}

// UpdateSong applies a partial song edit in the draft.
func (e *Engine) UpdateSong(ministerID, songID string, update schema.SongUpdate) error {
	return e.apply(func(doc *schema.Document) (*schema.Document, error) {
		return schema.UpdateSong(doc, e.cfg.Actor, ministerID, songID, update)
	}, false)
}

// DeleteSong removes a song from a minister's draft list.
func (e *Engine) DeleteSong(ministerID, songID string) error {
	return e.apply(func(doc *schema.Document) (*schema.Document, error) {
		return schema.DeleteSong(doc, e.cfg.Actor, ministerID, songID)
	}, false)
}

// SetRehearsalNotice replaces the draft rehearsal notice.
func (e *Engine) SetRehearsalNotice(text string) error {
	return e.apply(func(doc *schema.Document) (*schema.Document, error) {
		return schema.SetRehearsalNotice(doc, e.cfg.Actor, text)
	}, false)
}

// AddScaleImage prepends a schedule image to the draft gallery.
func (e *Engine) AddScaleImage(url, date string) error {
	return e.apply(func(doc *schema.Document) (*schema.Document, error) {
		return schema.AddScaleImage(doc, e.cfg.Actor, url, date)
	}, false)
}

// DeleteScaleImage removes a schedule image from the draft gallery.
func (e *Engine) DeleteScaleImage(imageID string) error {
	return e.apply(func(doc *schema.Document) (*schema.Document, error) {
		return schema.DeleteScaleImage(doc, e.cfg.Actor, imageID)
	}, false)
}

// PromoteDraft deep-copies the draft into the published snapshot. Promoting
// is an explicit, infrequent action, so it bypasses the debounce window and
// flushes to the remote store immediately.
func (e *Engine) PromoteDraft() error {
	return e.apply(func(doc *schema.Document) (*schema.Document, error) {
		return schema.Promote(doc, e.cfg.Actor)
	}, true)
}
