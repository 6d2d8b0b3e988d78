package downloader

import (
	"bufio"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ValidCookiesFile reports whether the file at path is a usable
// Netscape-format cookie jar: at least one non-comment, non-blank line with
// seven or more tab-separated fields.
func ValidCookiesFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	validLines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Netscape format: domain, flag, path, secure, expiration, name, value
		if len(strings.Split(line, "\t")) >= 7 {
			validLines++
		}
	}
	if err := scanner.Err(); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("Failed reading cookies file")
		return false
	}

	return validLines > 0
}

// CookiesPresent reports whether a cookie file exists at all. A present but
// malformed jar is still handed to the downloader (logged, tolerated) rather
// than rejected.
func CookiesPresent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
