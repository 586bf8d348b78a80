package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	spaceRun      = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLineRun  = regexp.MustCompile(`\n{3,}`)
	bulletGlyphs  = strings.NewReplacer("•", "-", "◦", "-", "▪", "-", "‣", "-", "●", "-")
	bulletPattern = regexp.MustCompile(`^\s*(?:[-*]|\d+[.)])\s+`)
)

// CleanText normalizes line endings, bullet glyphs and runs of spaces while
// keeping the line structure that the heuristics rely on.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ToValidUTF8(content, "")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = bulletGlyphs.Replace(content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}

	result := strings.Join(lines, "\n")
	result = blankLineRun.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// isBulletLine reports whether a cleaned line is a list item.
func isBulletLine(line string) bool {
	return bulletPattern.MatchString(line)
}

// stripBullet removes a leading list marker.
func stripBullet(line string) string {
	return strings.TrimSpace(bulletPattern.ReplaceAllString(line, ""))
}

// ContentHash identifies imported content without retaining it.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
