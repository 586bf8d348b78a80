// Package merge folds partial conversational updates into a structured Document.
//
// Apply never removes data: scalars are only overwritten by non-empty values,
// list entries are matched by id (or by natural key when they carry none) and
// merged field by field, entries with an unknown id are appended, and
// string lists are unioned. Applying the same update twice yields the same
// document as applying it once.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/resume-coach/internal/types"
)

// Apply returns base with update folded in. base is never mutated; on error
// the returned document is base itself.
func Apply(base types.Document, update types.Update) (types.Document, error) {
	if !update.Action.Valid() {
		return base, &ValidationError{Message: fmt.Sprintf("unknown action %q", update.Action)}
	}
	if update.Action == types.ActionNone {
		return base, nil
	}
	if !update.Section.Valid() {
		return base, &ValidationError{Message: fmt.Sprintf("unknown section %q", update.Section)}
	}
	payload := bytes.TrimSpace(update.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return base, &ValidationError{Section: string(update.Section), Message: "payload is required"}
	}

	doc := Clone(base)
	var err error
	switch update.Section {
	case types.SectionHeader:
		err = applyHeader(&doc, payload)
	case types.SectionSummary:
		err = applySummary(&doc, payload)
	case types.SectionExperience:
		err = applyExperience(&doc, payload)
	case types.SectionEducation:
		err = applyEducation(&doc, payload)
	case types.SectionSkills:
		err = applySkills(&doc, payload)
	case types.SectionCertifications:
		err = applyCertifications(&doc, payload)
	case types.SectionKeywords:
		err = applyKeywords(&doc, payload)
	case types.SectionConstraints:
		err = applyConstraints(&doc, payload)
	}
	if err != nil {
		return base, &ValidationError{Section: string(update.Section), Message: "payload does not match section", Cause: err}
	}
	return doc, nil
}

// ApplyAll folds updates in order. If any update is rejected, base is
// returned unchanged together with the error.
func ApplyAll(base types.Document, updates []types.Update) (types.Document, error) {
	doc := base
	for i, u := range updates {
		next, err := Apply(doc, u)
		if err != nil {
			return base, fmt.Errorf("update %d: %w", i, err)
		}
		doc = next
	}
	return doc, nil
}

func applyHeader(doc *types.Document, payload []byte) error {
	var h types.Header
	if err := json.Unmarshal(payload, &h); err != nil {
		return err
	}
	setIfPresent(&doc.Header.FullName, h.FullName)
	setIfPresent(&doc.Header.Headline, h.Headline)
	setIfPresent(&doc.Header.Location, h.Location)
	setIfPresent(&doc.Header.Email, h.Email)
	setIfPresent(&doc.Header.Phone, h.Phone)
	doc.Header.Links = union(doc.Header.Links, h.Links)
	return nil
}

// applySummary accepts a bare JSON string or an object with a summary/text field.
func applySummary(doc *types.Document, payload []byte) error {
	var s string
	if payload[0] == '{' {
		var obj struct {
			Summary string `json:"summary"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(payload, &obj); err != nil {
			return err
		}
		s = obj.Summary
		if s == "" {
			s = obj.Text
		}
	} else if err := json.Unmarshal(payload, &s); err != nil {
		return err
	}
	setIfPresent(&doc.Summary, s)
	return nil
}

func applyExperience(doc *types.Document, payload []byte) error {
	var entries []types.ExperienceEntry
	if err := decodeList(payload, &entries); err != nil {
		return err
	}
	for _, in := range entries {
		in = trimExperience(in)
		if isEmptyExperience(in) {
			continue
		}
		if i := findExperience(doc.Experience, in); i >= 0 {
			mergeExperience(&doc.Experience[i], in)
			continue
		}
		if in.ID == "" {
			in.ID = experienceID(in)
		}
		doc.Experience = append(doc.Experience, in)
	}
	return nil
}

// findExperience returns the index of the entry in should merge into, or -1.
// An explicit id only ever matches that id; natural keys apply to entries
// without one.
func findExperience(list []types.ExperienceEntry, in types.ExperienceEntry) int {
	if in.ID != "" {
		return indexByID(list, in.ID, func(e types.ExperienceEntry) string { return e.ID })
	}
	if i := indexByID(list, experienceID(in), func(e types.ExperienceEntry) string { return e.ID }); i >= 0 {
		return i
	}
	for i := range list {
		if sameExperience(list[i], in) {
			return i
		}
	}
	return -1
}

func sameExperience(a, b types.ExperienceEntry) bool {
	anchored := equalNonEmpty(a.Company, b.Company) || equalNonEmpty(a.Role, b.Role)
	return anchored && compatible(a.Company, b.Company) && compatible(a.Role, b.Role) && compatible(a.StartDate, b.StartDate)
}

func mergeExperience(dst *types.ExperienceEntry, in types.ExperienceEntry) {
	setIfPresent(&dst.Role, in.Role)
	setIfPresent(&dst.Company, in.Company)
	setIfPresent(&dst.StartDate, in.StartDate)
	setIfPresent(&dst.EndDate, in.EndDate)
	setIfPresent(&dst.Location, in.Location)
	dst.Bullets = union(dst.Bullets, in.Bullets)
}

func trimExperience(e types.ExperienceEntry) types.ExperienceEntry {
	e.ID = strings.TrimSpace(e.ID)
	e.Role = strings.TrimSpace(e.Role)
	e.Company = strings.TrimSpace(e.Company)
	e.StartDate = strings.TrimSpace(e.StartDate)
	e.EndDate = strings.TrimSpace(e.EndDate)
	e.Location = strings.TrimSpace(e.Location)
	e.Bullets = union(nil, e.Bullets)
	return e
}

func isEmptyExperience(e types.ExperienceEntry) bool {
	return blank(e.Role) && blank(e.Company) && blank(e.StartDate) && blank(e.EndDate) &&
		blank(e.Location) && len(e.Bullets) == 0
}

func applyEducation(doc *types.Document, payload []byte) error {
	var entries []types.EducationEntry
	if err := decodeList(payload, &entries); err != nil {
		return err
	}
	for _, in := range entries {
		in.ID = strings.TrimSpace(in.ID)
		in.Degree = strings.TrimSpace(in.Degree)
		in.Field = strings.TrimSpace(in.Field)
		in.Institution = strings.TrimSpace(in.Institution)
		in.StartDate = strings.TrimSpace(in.StartDate)
		in.EndDate = strings.TrimSpace(in.EndDate)
		if blank(in.Degree) && blank(in.Field) && blank(in.Institution) && blank(in.StartDate) && blank(in.EndDate) {
			continue
		}
		if i := findEducation(doc.Education, in); i >= 0 {
			dst := &doc.Education[i]
			setIfPresent(&dst.Degree, in.Degree)
			setIfPresent(&dst.Field, in.Field)
			setIfPresent(&dst.Institution, in.Institution)
			setIfPresent(&dst.StartDate, in.StartDate)
			setIfPresent(&dst.EndDate, in.EndDate)
			continue
		}
		if in.ID == "" {
			in.ID = educationID(in)
		}
		doc.Education = append(doc.Education, in)
	}
	return nil
}

func findEducation(list []types.EducationEntry, in types.EducationEntry) int {
	if in.ID != "" {
		return indexByID(list, in.ID, func(e types.EducationEntry) string { return e.ID })
	}
	if i := indexByID(list, educationID(in), func(e types.EducationEntry) string { return e.ID }); i >= 0 {
		return i
	}
	for i := range list {
		a := list[i]
		anchored := equalNonEmpty(a.Institution, in.Institution) || equalNonEmpty(a.Degree, in.Degree)
		if anchored && compatible(a.Institution, in.Institution) && compatible(a.Degree, in.Degree) && compatible(a.Field, in.Field) {
			return i
		}
	}
	return -1
}

func applyCertifications(doc *types.Document, payload []byte) error {
	var entries []types.Certification
	if err := decodeList(payload, &entries); err != nil {
		return err
	}
	for _, in := range entries {
		in.ID = strings.TrimSpace(in.ID)
		in.Name = strings.TrimSpace(in.Name)
		in.Issuer = strings.TrimSpace(in.Issuer)
		in.Date = strings.TrimSpace(in.Date)
		if blank(in.Name) && blank(in.Issuer) && blank(in.Date) {
			continue
		}
		if i := findCertification(doc.Certifications, in); i >= 0 {
			dst := &doc.Certifications[i]
			setIfPresent(&dst.Name, in.Name)
			setIfPresent(&dst.Issuer, in.Issuer)
			setIfPresent(&dst.Date, in.Date)
			continue
		}
		if in.ID == "" {
			in.ID = certificationID(in)
		}
		doc.Certifications = append(doc.Certifications, in)
	}
	return nil
}

func findCertification(list []types.Certification, in types.Certification) int {
	if in.ID != "" {
		return indexByID(list, in.ID, func(c types.Certification) string { return c.ID })
	}
	if i := indexByID(list, certificationID(in), func(c types.Certification) string { return c.ID }); i >= 0 {
		return i
	}
	for i := range list {
		if equalNonEmpty(list[i].Name, in.Name) && compatible(list[i].Issuer, in.Issuer) {
			return i
		}
	}
	return -1
}

// applySkills accepts a {hard, soft} object or a bare list, which is treated as hard skills.
func applySkills(doc *types.Document, payload []byte) error {
	var s types.Skills
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &s.Hard); err != nil {
			return err
		}
	} else if err := json.Unmarshal(payload, &s); err != nil {
		return err
	}
	doc.Skills.Hard = union(doc.Skills.Hard, s.Hard)
	doc.Skills.Soft = union(doc.Skills.Soft, s.Soft)
	return nil
}

func applyKeywords(doc *types.Document, payload []byte) error {
	var kws []string
	if err := decodeList(payload, &kws); err != nil {
		return err
	}
	doc.Keywords = union(doc.Keywords, kws)
	return nil
}

func applyConstraints(doc *types.Document, payload []byte) error {
	var c types.Constraints
	if err := json.Unmarshal(payload, &c); err != nil {
		return err
	}
	if c.OnePage != nil {
		v := *c.OnePage
		doc.Constraints.OnePage = &v
	}
	setIfPresent(&doc.Constraints.Language, c.Language)
	setIfPresent(&doc.Constraints.TargetRole, c.TargetRole)
	return nil
}

func indexByID[T any](list []T, id string, idOf func(T) string) int {
	for i := range list {
		if idOf(list[i]) == id {
			return i
		}
	}
	return -1
}

// decodeList decodes either a JSON array or a single element into dst.
func decodeList[T any](payload []byte, dst *[]T) error {
	if payload[0] == '[' {
		return json.Unmarshal(payload, dst)
	}
	var one T
	if err := json.Unmarshal(payload, &one); err != nil {
		return err
	}
	*dst = []T{one}
	return nil
}

func setIfPresent(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// union appends the values of add missing from base, comparing
// case-insensitively. base is kept as is.
func union(base, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	for _, v := range base {
		seen[normalize(v)] = struct{}{}
	}
	out := cloneStrings(base)
	for _, v := range add {
		v = strings.TrimSpace(v)
		key := normalize(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func equalNonEmpty(a, b string) bool {
	na := normalize(a)
	return na != "" && na == normalize(b)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
