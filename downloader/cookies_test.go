package downloader

import (
	"os"
	"path/filepath"
	"testing"
)

const validJar = `# Netscape HTTP Cookie File
# This is a generated file! Do not edit.

.youtube.com	TRUE	/	TRUE	1999999999	SID	abc123
.youtube.com	TRUE	/	TRUE	1999999999	HSID	def456
`

func writeCookieFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidCookiesFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{
			name:    "Valid Netscape jar",
			content: validJar,
			want:    true,
		},
		{
			name:    "Only comments",
			content: "# Netscape HTTP Cookie File\n# nothing else\n",
			want:    false,
		},
		{
			name:    "Space separated fields",
			content: ".youtube.com TRUE / TRUE 1999999999 SID abc123\n",
			want:    false,
		},
		{
			name:    "Too few fields",
			content: ".youtube.com\tTRUE\t/\n",
			want:    false,
		},
		{
			name:    "Empty file",
			content: "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCookieFile(t, tt.content)
			if got := ValidCookiesFile(path); got != tt.want {
				t.Errorf("ValidCookiesFile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidCookiesFileMissing(t *testing.T) {
	if ValidCookiesFile(filepath.Join(t.TempDir(), "absent.txt")) {
		t.Error("ValidCookiesFile() = true for missing file")
	}
}

func TestCookiesPresent(t *testing.T) {
	if CookiesPresent(filepath.Join(t.TempDir(), "absent.txt")) {
		t.Error("CookiesPresent() = true for missing file")
	}

	empty := writeCookieFile(t, "")
	if CookiesPresent(empty) {
		t.Error("CookiesPresent() = true for empty file")
	}

	malformed := writeCookieFile(t, "not a cookie jar at all")
	if !CookiesPresent(malformed) {
		t.Error("CookiesPresent() = false for present malformed file")
	}
}
