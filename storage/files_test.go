package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	mediaDir := filepath.Join(base, "media")
	subtitleDir := filepath.Join(base, "srt")
	for _, dir := range []string{mediaDir, subtitleDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return NewStore(mediaDir, subtitleDir)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFindMediaAudio(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.mediaDir, "abc123.mp3"), "audio")
	writeFile(t, filepath.Join(s.mediaDir, "abc123.mp4"), "video")

	name, size, ok := s.FindMedia("abc123", true)
	if !ok {
		t.Fatal("FindMedia(audio) = false, want true")
	}
	if name != "abc123.mp3" || size != 5 {
		t.Errorf("FindMedia(audio) = %s/%d, want abc123.mp3/5", name, size)
	}
}

func TestFindMediaVideoSkipsAudio(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.mediaDir, "abc123.mp3"), "audio")
	writeFile(t, filepath.Join(s.mediaDir, "abc123.webm"), "video file")

	name, _, ok := s.FindMedia("abc123", false)
	if !ok {
		t.Fatal("FindMedia(video) = false, want true")
	}
	if name != "abc123.webm" {
		t.Errorf("FindMedia(video) = %s, want abc123.webm", name)
	}
}

func TestFindMediaNoPrefixCollision(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.mediaDir, "abc123456.mp4"), "other video")

	if _, _, ok := s.FindMedia("abc123", false); ok {
		t.Error("FindMedia matched a different video id")
	}
}

func TestFindMediaMissing(t *testing.T) {
	s := newTestStore(t)
	if _, _, ok := s.FindMedia("abc123", true); ok {
		t.Error("FindMedia = true for empty store")
	}
	if _, _, ok := s.FindMedia("abc123", false); ok {
		t.Error("FindMedia = true for empty store")
	}
}

func TestFindSubtitle(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.subtitleDir, "abc123.srt"), "1\n00:00:00,000 --> 00:00:01,000\nhi\n")

	name, size, ok := s.FindSubtitle("abc123")
	if !ok {
		t.Fatal("FindSubtitle = false, want true")
	}
	if name != "abc123.srt" || size == 0 {
		t.Errorf("FindSubtitle = %s/%d", name, size)
	}

	if _, _, ok := s.FindSubtitle("missing"); ok {
		t.Error("FindSubtitle = true for missing id")
	}
}

func TestOutputTemplate(t *testing.T) {
	s := NewStore("/data/media", "/data/srt")
	want := filepath.Join("/data/media", "abc123.%(ext)s")
	if got := s.OutputTemplate("abc123"); got != want {
		t.Errorf("OutputTemplate = %q, want %q", got, want)
	}
}

func TestResolveFile(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.mediaDir, "abc123.mp4"), "video")
	writeFile(t, filepath.Join(s.subtitleDir, "abc123.srt"), "srt")

	tests := []struct {
		name    string
		file    string
		wantErr bool
	}{
		{"media file", "abc123.mp4", false},
		{"subtitle file", "abc123.srt", false},
		{"missing file", "nope.mp4", true},
		{"empty name", "", true},
		{"traversal", "../files.go", true},
		{"nested path", "sub/abc123.mp4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := s.ResolveFile(tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveFile(%q) error = %v, wantErr %v", tt.file, err, tt.wantErr)
			}
			if err == nil && filepath.Base(path) != tt.file {
				t.Errorf("ResolveFile(%q) = %q", tt.file, path)
			}
		})
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.mediaDir, "a.mp4"), "aaaa")
	writeFile(t, filepath.Join(s.subtitleDir, "a.srt"), "ss")

	files, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("List() returned %d files, want 2", len(files))
	}

	kinds := map[string]string{}
	for _, f := range files {
		kinds[f.Name] = f.Kind
	}
	if kinds["a.mp4"] != "media" || kinds["a.srt"] != "subtitle" {
		t.Errorf("unexpected kinds: %v", kinds)
	}
}

func TestListMissingDirs(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "nada"))
	files, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("List() returned %d files, want 0", len(files))
	}
}
