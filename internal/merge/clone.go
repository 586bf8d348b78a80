package merge

import "github.com/jonathan/resume-coach/internal/types"

// Clone returns a deep copy of doc so callers can mutate the result freely.
func Clone(doc types.Document) types.Document {
	out := doc
	out.Header.Links = cloneStrings(doc.Header.Links)
	if doc.Experience != nil {
		out.Experience = make([]types.ExperienceEntry, len(doc.Experience))
		for i, e := range doc.Experience {
			e.Bullets = cloneStrings(e.Bullets)
			out.Experience[i] = e
		}
	}
	if doc.Education != nil {
		out.Education = append([]types.EducationEntry{}, doc.Education...)
	}
	if doc.Certifications != nil {
		out.Certifications = append([]types.Certification{}, doc.Certifications...)
	}
	out.Skills.Hard = cloneStrings(doc.Skills.Hard)
	out.Skills.Soft = cloneStrings(doc.Skills.Soft)
	out.Keywords = cloneStrings(doc.Keywords)
	if doc.Constraints.OnePage != nil {
		v := *doc.Constraints.OnePage
		out.Constraints.OnePage = &v
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
