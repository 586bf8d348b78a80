package merge

import (
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"strings"

	"github.com/jonathan/resume-coach/internal/types"
)

// Prefixes for derived entry IDs
const (
	ExperiencePrefix    = "exp_"
	EducationPrefix     = "edu_"
	CertificationPrefix = "cert_"
)

// EntryID derives a stable identifier from the normalized natural key parts.
// The same content always yields the same id, which keeps merges idempotent.
func EntryID(prefix string, parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = normalize(p)
	}
	sum := sha1.Sum([]byte(strings.Join(normalized, "|"))) //nolint:gosec
	return prefix + hex.EncodeToString(sum[:4])
}

func experienceID(e types.ExperienceEntry) string {
	return EntryID(ExperiencePrefix, e.Company, e.Role, e.StartDate)
}

func educationID(e types.EducationEntry) string {
	return EntryID(EducationPrefix, e.Institution, e.Degree, e.Field)
}

func certificationID(c types.Certification) string {
	return EntryID(CertificationPrefix, c.Name, c.Issuer)
}

// normalize lowercases and collapses whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// compatible reports whether two optional values agree: equal after
// normalization, or at least one of them unknown.
func compatible(a, b string) bool {
	na, nb := normalize(a), normalize(b)
	return na == "" || nb == "" || na == nb
}
