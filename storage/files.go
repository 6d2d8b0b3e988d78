package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Store manages downloaded media and generated subtitle files on local disk.
// Media files are named "<videoID>.<ext>"; subtitles are "<videoID>.srt".
type Store struct {
	mediaDir    string
	subtitleDir string
}

func NewStore(mediaDir, subtitleDir string) *Store {
	return &Store{
		mediaDir:    mediaDir,
		subtitleDir: subtitleDir,
	}
}

// FileInfo describes one stored artifact.
type FileInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Kind       string    `json:"kind"`
	ModifiedAt time.Time `json:"modified_at"`
}

// OutputTemplate is the templated output path handed to the download tool;
// the tool substitutes the container extension.
func (s *Store) OutputTemplate(videoID string) string {
	return filepath.Join(s.mediaDir, videoID+".%(ext)s")
}

// AudioPath is where the extracted audio for a video lives.
func (s *Store) AudioPath(videoID string) string {
	return filepath.Join(s.mediaDir, videoID+".mp3")
}

// SubtitlePath is where the generated SRT for a video lives.
func (s *Store) SubtitlePath(videoID string) string {
	return filepath.Join(s.subtitleDir, videoID+".srt")
}

// FindMedia looks for an existing artifact for the video. Audio requests
// match only the mp3; video requests match any container except the mp3.
func (s *Store) FindMedia(videoID string, audioOnly bool) (string, int64, bool) {
	if audioOnly {
		name := videoID + ".mp3"
		info, err := os.Stat(filepath.Join(s.mediaDir, name))
		if err != nil || info.IsDir() {
			return "", 0, false
		}
		return name, info.Size(), true
	}

	entries, err := os.ReadDir(s.mediaDir)
	if err != nil {
		return "", 0, false
	}
	prefix := videoID + "."
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ".mp3") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		return name, info.Size(), true
	}
	return "", 0, false
}

// FindSubtitle reports whether an SRT already exists for the video.
func (s *Store) FindSubtitle(videoID string) (string, int64, bool) {
	name := videoID + ".srt"
	info, err := os.Stat(filepath.Join(s.subtitleDir, name))
	if err != nil || info.IsDir() {
		return "", 0, false
	}
	return name, info.Size(), true
}

// ResolveFile maps a bare filename to its path, checking the media directory
// first and the subtitle directory second. Names with path separators or
// traversal are rejected.
func (s *Store) ResolveFile(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", errors.Errorf("invalid filename: %q", name)
	}

	for _, dir := range []string{s.mediaDir, s.subtitleDir} {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.Errorf("file not found: %s", name)
}

// List returns every stored artifact, newest first.
func (s *Store) List() ([]FileInfo, error) {
	var files []FileInfo

	dirs := []struct {
		path string
		kind string
	}{
		{s.mediaDir, "media"},
		{s.subtitleDir, "subtitle"},
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir.path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "reading %s directory", dir.kind)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, FileInfo{
				Name:       entry.Name(),
				Size:       info.Size(),
				Kind:       dir.kind,
				ModifiedAt: info.ModTime(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModifiedAt.After(files[j].ModifiedAt)
	})
	return files, nil
}
