// Package readiness scores how complete a résumé document is.
package readiness

import (
	"regexp"
	"strings"

	"github.com/jonathan/resume-coach/internal/types"
)

// ReadyThreshold is the total at which a document becomes READY.
const ReadyThreshold = 80

// Category names a rubric line.
type Category string

// Rubric categories
const (
	CategoryHeader         Category = "header"
	CategoryHeadline       Category = "headline"
	CategorySummary        Category = "summary"
	CategoryExperience     Category = "experience"
	CategoryBullets        Category = "bullets"
	CategoryMetrics        Category = "metrics"
	CategoryEducation      Category = "education"
	CategorySkills         Category = "skills"
	CategoryKeywords       Category = "keywords"
	CategoryCertifications Category = "certifications"
)

// MaxPoints is the rubric: maximum points per category. Sums to 100.
var MaxPoints = map[Category]int{
	CategoryHeader:         15,
	CategoryHeadline:       5,
	CategorySummary:        10,
	CategoryExperience:     10,
	CategoryBullets:        15,
	CategoryMetrics:        15,
	CategoryEducation:      10,
	CategorySkills:         10,
	CategoryKeywords:       5,
	CategoryCertifications: 5,
}

// Categories lists the rubric in presentation order.
var Categories = []Category{
	CategoryHeader, CategoryHeadline, CategorySummary, CategoryExperience, CategoryBullets,
	CategoryMetrics, CategoryEducation, CategorySkills, CategoryKeywords, CategoryCertifications,
}

// Result is the outcome of scoring a document.
type Result struct {
	Total     int              `json:"total"`
	Breakdown map[Category]int `json:"breakdown"`
	Ready     bool             `json:"ready"`
}

// BreakdownStrings returns the breakdown keyed by plain strings, for persistence.
func (r Result) BreakdownStrings() map[string]int {
	out := make(map[string]int, len(r.Breakdown))
	for k, v := range r.Breakdown {
		out[string(k)] = v
	}
	return out
}

var metricPattern = regexp.MustCompile(`\d|%|[$€£¥]`)

// Missing lists the categories still short of their maximum, in rubric order.
func (r Result) Missing() []Category {
	var out []Category
	for _, c := range Categories {
		if r.Breakdown[c] < MaxPoints[c] {
			out = append(out, c)
		}
	}
	return out
}

// HasMetric reports whether text carries a quantifiable figure.
func HasMetric(text string) bool {
	return metricPattern.MatchString(text)
}

// Score applies the rubric to doc. It is pure and deterministic.
func Score(doc types.Document) Result {
	b := map[Category]int{
		CategoryHeader:         headerPoints(doc.Header),
		CategoryHeadline:       presence(doc.Header.Headline, MaxPoints[CategoryHeadline]),
		CategorySummary:        presence(doc.Summary, MaxPoints[CategorySummary]),
		CategoryExperience:     0,
		CategoryBullets:        0,
		CategoryMetrics:        0,
		CategoryEducation:      0,
		CategorySkills:         tiered(doc.Skills.Count(), 5, MaxPoints[CategorySkills], 5),
		CategoryKeywords:       keywordPoints(doc),
		CategoryCertifications: 0,
	}

	if len(doc.Experience) > 0 {
		b[CategoryExperience] = MaxPoints[CategoryExperience]
	}
	bullets, withMetrics := 0, 0
	for _, e := range doc.Experience {
		for _, bullet := range e.Bullets {
			if strings.TrimSpace(bullet) == "" {
				continue
			}
			bullets++
			if HasMetric(bullet) {
				withMetrics++
			}
		}
	}
	b[CategoryBullets] = tiered(bullets, 3, MaxPoints[CategoryBullets], 8)
	b[CategoryMetrics] = tiered(withMetrics, 2, MaxPoints[CategoryMetrics], 8)

	if len(doc.Education) > 0 {
		b[CategoryEducation] = MaxPoints[CategoryEducation]
	}
	if len(doc.Certifications) > 0 {
		b[CategoryCertifications] = MaxPoints[CategoryCertifications]
	}

	total := 0
	for c, p := range b {
		if p > MaxPoints[c] {
			p = MaxPoints[c]
			b[c] = p
		}
		total += p
	}
	if total > 100 {
		total = 100
	}
	return Result{Total: total, Breakdown: b, Ready: total >= ReadyThreshold}
}

// StatusFor derives DRAFT or READY from a total.
func StatusFor(total int) types.DocumentStatus {
	if total >= ReadyThreshold {
		return types.StatusReady
	}
	return types.StatusDraft
}

func headerPoints(h types.Header) int {
	points := 0
	if strings.TrimSpace(h.FullName) != "" {
		points += 5
	}
	if strings.TrimSpace(h.Email) != "" {
		points += 4
	}
	if strings.TrimSpace(h.Phone) != "" {
		points += 3
	}
	if strings.TrimSpace(h.Location) != "" {
		points += 3
	}
	return points
}

func presence(s string, points int) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return points
}

// tiered gives full points at or above threshold, partial points for any
// non-zero count below it.
func tiered(count, threshold, full, partial int) int {
	switch {
	case count >= threshold:
		return full
	case count > 0:
		return partial
	default:
		return 0
	}
}

// keywordPoints awards points when at least one target keyword, or the
// target role, shows up in the body of the document.
func keywordPoints(doc types.Document) int {
	targets := append([]string{}, doc.Keywords...)
	if doc.Constraints.TargetRole != "" {
		targets = append(targets, doc.Constraints.TargetRole)
	}
	if len(targets) == 0 {
		return 0
	}

	var body strings.Builder
	body.WriteString(doc.Header.Headline)
	body.WriteByte('\n')
	body.WriteString(doc.Summary)
	for _, e := range doc.Experience {
		body.WriteByte('\n')
		body.WriteString(e.Role)
		for _, bullet := range e.Bullets {
			body.WriteByte('\n')
			body.WriteString(bullet)
		}
	}
	for _, s := range append(append([]string{}, doc.Skills.Hard...), doc.Skills.Soft...) {
		body.WriteByte('\n')
		body.WriteString(s)
	}
	haystack := strings.ToLower(body.String())

	for _, kw := range targets {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(haystack, kw) {
			return MaxPoints[CategoryKeywords]
		}
	}
	return 0
}
