package attempt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neudev/attemptd/internal/model"
)

var (
	ErrUnknownFile        = errors.New("file not found")
	ErrLastFile           = errors.New("cannot delete the last file")
	ErrLanguageNotAllowed = errors.New("language not allowed for this activity")
)

// FocusItem switches the item whose clock is running.
func (m *Manager) FocusItem(ctx context.Context, itemID int64) error {
	m.mu.Lock()
	activity := m.activity
	m.mu.Unlock()
	if activity != nil {
		if _, ok := activity.ItemByID(itemID); !ok {
			return ErrUnknownItem
		}
	}

	return m.mutate(ctx, func(rec *model.SessionRecord) error {
		*rec = *Focus(rec, itemID, m.now())
		return nil
	})
}

// SelectFile makes a file the active editor buffer.
func (m *Manager) SelectFile(ctx context.Context, fileID int) error {
	return m.mutate(ctx, func(rec *model.SessionRecord) error {
		if _, ok := rec.FileByID(fileID); !ok {
			return ErrUnknownFile
		}
		rec.ActiveFileID = fileID
		return nil
	})
}

// EditActiveFile replaces the content of the active file.
func (m *Manager) EditActiveFile(ctx context.Context, content string) error {
	return m.mutate(ctx, func(rec *model.SessionRecord) error {
		i := fileIndex(rec, rec.ActiveFileID)
		if i < 0 {
			return ErrUnknownFile
		}
		rec.Files[i].Content = content
		return nil
	})
}

// AddFile appends an empty file and makes it active. Empty names default to file<id>.
func (m *Manager) AddFile(ctx context.Context, name, ext string) (model.File, error) {
	var added model.File
	err := m.mutate(ctx, func(rec *model.SessionRecord) error {
		id := 0
		for _, f := range rec.Files {
			if f.ID >= id {
				id = f.ID + 1
			}
		}
		if name = strings.TrimSpace(name); name == "" {
			name = fmt.Sprintf("file%d", id)
		}
		if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext == "" {
			ext = ExtensionFor(rec.SelectedLanguage)
		}
		added = model.File{ID: id, FileName: name, Extension: ext}
		rec.Files = append(rec.Files, added)
		rec.ActiveFileID = id
		return nil
	})
	return added, err
}

// RenameFile changes a file's name and extension. Empty values are kept as they are.
func (m *Manager) RenameFile(ctx context.Context, fileID int, name, ext string) error {
	return m.mutate(ctx, func(rec *model.SessionRecord) error {
		i := fileIndex(rec, fileID)
		if i < 0 {
			return ErrUnknownFile
		}
		if name = strings.TrimSpace(name); name != "" {
			rec.Files[i].FileName = name
		}
		if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext != "" {
			rec.Files[i].Extension = ext
		}
		return nil
	})
}

// DeleteFile removes a file. The last remaining file cannot be deleted.
func (m *Manager) DeleteFile(ctx context.Context, fileID int) error {
	return m.mutate(ctx, func(rec *model.SessionRecord) error {
		i := fileIndex(rec, fileID)
		if i < 0 {
			return ErrUnknownFile
		}
		if len(rec.Files) == 1 {
			return ErrLastFile
		}
		rec.Files = append(rec.Files[:i], rec.Files[i+1:]...)
		if rec.ActiveFileID == fileID {
			rec.ActiveFileID = rec.Files[0].ID
		}
		return nil
	})
}

// SelectLanguage switches the language and rewrites the active file's extension.
func (m *Manager) SelectLanguage(ctx context.Context, lang string) error {
	m.mu.Lock()
	activity := m.activity
	m.mu.Unlock()
	if activity != nil && len(activity.AllowedLanguages) > 0 {
		allowed := false
		for _, l := range activity.AllowedLanguages {
			if l.ProgLangName == lang {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrLanguageNotAllowed
		}
	}

	return m.mutate(ctx, func(rec *model.SessionRecord) error {
		rec.SelectedLanguage = lang
		if i := fileIndex(rec, rec.ActiveFileID); i >= 0 {
			rec.Files[i].Extension = ExtensionFor(lang)
		}
		return nil
	})
}

func fileIndex(rec *model.SessionRecord, id int) int {
	for i, f := range rec.Files {
		if f.ID == id {
			return i
		}
	}
	return -1
}
