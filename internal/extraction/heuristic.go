// Package extraction turns free text and uploaded documents into a
// best-effort PartialDocument. Nothing here fails: text that yields no
// recognizable data produces an empty guess.
package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jonathan/resume-coach/internal/types"
)

// Extractor guesses document content from text.
type Extractor interface {
	Extract(text string) types.PartialDocument
}

// DefaultMaxInput bounds the text the heuristics scan.
const DefaultMaxInput = 64 << 10

const (
	month     = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`
	dateExpr  = `(?:` + month + `\s+)?(?:19|20)\d{2}|\d{1,2}/(?:19|20)\d{2}`
	endExpr   = `(?:` + dateExpr + `|present|current|now|today)`
	rangeExpr = `(?i:(?:from\s+)?(` + dateExpr + `)\s*(?:-|–|—|to|until)\s*(` + endExpr + `))`
	nameWord  = `\p{Lu}[\p{L}'\-]+`
)

var (
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern  = regexp.MustCompile(`\+?\(?\d[\d\s().\-]{6,18}\d`)
	linkPattern   = regexp.MustCompile(`(?i)\b(?:https?://|www\.|(?:linkedin|github|gitlab)\.com/)[^\s<>"')]+`)
	yearRange     = regexp.MustCompile(`^(?:19|20)\d{2}\s*[-–—]\s*(?:19|20)\d{2}$`)
	isoDate       = regexp.MustCompile(`^\d{4}[-./]\d{2}[-./]\d{2}$`)
	dateRange     = regexp.MustCompile(rangeExpr)
	singleYear    = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	namePhrase    = regexp.MustCompile(`(?i:\bmy name is|\bname:)\s+(` + nameWord + `(?:\s+` + nameWord + `){0,3})`)
	selfPhrase    = regexp.MustCompile(`(?i:\bi am|\bi'm|\bthis is)\s+(` + nameWord + `(?:\s+` + nameWord + `){1,3})`)
	nameLine      = regexp.MustCompile(`^` + nameWord + `(?:\s+\p{Lu}[\p{L}'\-.]*){1,3}$`)
	headlineQuote = regexp.MustCompile(`(?i)\b(?:i am|i'm|i work as|working as|currently)\s+(?:an?\s+)([^.,;!?\n]{3,60})`)
	locationQuote = regexp.MustCompile(`(?i:\b(?:based in|located in|live in|living in|location:))\s+(\p{Lu}[\p{L}\-]*(?:,?\s+\p{Lu}[\p{L}\-]+){0,3})`)
	workSentence  = regexp.MustCompile(`(?i:\b(?:worked|work|working|was|am|i'm|currently|spent \w+ years?)\s+(?:as\s+)?(?:an?\s+|the\s+)?)([\p{L}][\p{L}/&\- ]{2,50}?)\s+(?i:at|for|@)\s+(\p{Lu}[\p{L}0-9&\-]*(?:\.[\p{L}0-9]+)*(?:\s+\p{Lu}[\p{L}0-9&\-]+){0,3})`)
	degreePattern = regexp.MustCompile(`(?i)\b(b\.?sc?\.?|b\.?a\.?|b\.?eng\.?|m\.?sc?\.?|m\.?a\.?|m\.?eng\.?|mba|ph\.?d\.?|bachelor(?:'s)?(?: degree)?|master(?:'s)?(?: degree)?|associate(?:'s)?(?: degree)?|doctorate)(?:\s|,|$)`)
	fieldPattern  = regexp.MustCompile(`(?i)\b(?:in|of)\s+([\p{L}][\p{L}&\- ]{2,60}?)(?:\s*(?:,|\(|\bfrom\b|\bat\b|\d|$))`)
	schoolPattern = regexp.MustCompile(`\b(?i:from|at)\s+(?:(?i:the)\s+)?(\p{Lu}[\p{L}&.\-]*(?:\s+(?:of\s+|de\s+)?\p{Lu}[\p{L}&.\-]*){0,5})`)
	schoolWords   = regexp.MustCompile(`(?i)\b(university|college|institute|school|academy|polytechnic|universidad|universidade)\b`)
	certWords     = regexp.MustCompile(`(?i)\b(certified|certification|certificate|certificação|certificado)\b`)
	certSentence  = regexp.MustCompile(`(?i)\bi\s+(?:have|hold|earned|got|obtained|completed|passed)\s+(?:the\s+|an?\s+|my\s+)?([^.,;!?\n]{3,80})`)
	issuerPattern = regexp.MustCompile(`\b(?i:issued by|by|from)\s+(\p{Lu}[\p{L}0-9&.\-]*(?:\s+\p{Lu}[\p{L}0-9&.\-]*){0,3})`)
	parenPattern  = regexp.MustCompile(`\(([^)]*)\)`)
	skillsLabel   = regexp.MustCompile(`(?i)^(?:(technical|hard|soft|key|core)\s+)?(?:skills|technologies|tools|tech stack|competencies)\s*[:\-]\s*(.+)$`)
	skillsQuote   = regexp.MustCompile(`(?i)\b(?:my skills (?:include|are)|i know|i use|proficient (?:in|with)|experienced (?:in|with)|experience (?:in|with)|skilled in)\s+([^.!?\n]+)`)
	keywordsLabel = regexp.MustCompile(`(?i)^keywords?\s*:\s*(.+)$`)
	summaryLabel  = regexp.MustCompile(`(?i)^(?:professional summary|summary|about me|profile|objective)\s*:\s*(.+)$`)
	listSplit     = regexp.MustCompile(`\s*(?:,|;|\||/|\band\b|&)\s*`)
	fieldSplit    = regexp.MustCompile(`\s*(?:,|\||\s[-–—]\s)\s*`)
	firstPerson   = regexp.MustCompile(`(?i)(?:^|\s)(?:i|i'm|my|me|we)\s`)
)

// roleNouns mark a phrase as a job title.
var roleNouns = []string{
	"engineer", "developer", "programmer", "manager", "designer", "analyst", "scientist",
	"consultant", "architect", "lead", "director", "specialist", "administrator", "accountant",
	"teacher", "nurse", "marketer", "writer", "intern", "officer", "coordinator", "assistant",
	"technician", "sre", "devops", "founder", "cto", "ceo", "head", "researcher", "owner",
	"representative", "associate", "executive", "editor", "recruiter", "advisor", "tester",
}

var softSkills = map[string]bool{
	"communication": true, "leadership": true, "teamwork": true, "mentoring": true,
	"problem solving": true, "problem-solving": true, "collaboration": true, "adaptability": true,
	"time management": true, "creativity": true, "negotiation": true, "public speaking": true,
	"critical thinking": true, "coaching": true, "empathy": true, "stakeholder management": true,
}

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionExperience
	sectionEducation
	sectionSkills
	sectionCertifications
)

var sectionHeadings = map[string]section{
	"summary":                     sectionSummary,
	"professional summary":        sectionSummary,
	"profile":                     sectionSummary,
	"about":                       sectionSummary,
	"about me":                    sectionSummary,
	"experience":                  sectionExperience,
	"work experience":             sectionExperience,
	"professional experience":     sectionExperience,
	"employment":                  sectionExperience,
	"employment history":          sectionExperience,
	"work history":                sectionExperience,
	"education":                   sectionEducation,
	"skills":                      sectionSkills,
	"technical skills":            sectionSkills,
	"skills & tools":              sectionSkills,
	"certifications":              sectionCertifications,
	"certificates":                sectionCertifications,
	"licenses & certifications":   sectionCertifications,
	"licenses and certifications": sectionCertifications,
}

// Heuristic is the regex-driven Extractor used when the model emits no
// usable update block, and for imported documents.
type Heuristic struct {
	MaxInput int
}

// NewHeuristic returns a Heuristic with default limits.
func NewHeuristic() *Heuristic {
	return &Heuristic{MaxInput: DefaultMaxInput}
}

// Extract scans text for contact details, experience blocks, education,
// certifications and skills.
func (h *Heuristic) Extract(text string) types.PartialDocument {
	limit := h.MaxInput
	if limit <= 0 {
		limit = DefaultMaxInput
	}
	if len(text) > limit {
		text = strings.ToValidUTF8(text[:limit], "")
	}
	text = CleanText(text)

	var p types.PartialDocument
	if text == "" {
		return p
	}

	p.Header.Email = emailPattern.FindString(text)
	p.Header.Phone = findPhone(text)
	p.Header.Links = findLinks(text)
	p.Header.FullName = findName(text)
	p.Header.Location = submatch(locationQuote, text)
	p.Header.Headline = findHeadline(text)

	s := &scan{doc: &p}
	s.lines(text)
	s.sentences(text)
	return p
}

type scan struct {
	doc     *types.PartialDocument
	current int // index into doc.Experience receiving bullets, -1 for none
	summary []string
}

func (s *scan) lines(text string) {
	s.current = -1
	active := sectionNone

	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		heading := strings.ToLower(strings.Trim(line, "#:*= "))
		if sec, ok := sectionHeadings[heading]; ok {
			active = sec
			s.current = -1
			continue
		}

		if m := summaryLabel.FindStringSubmatch(line); m != nil {
			s.summary = append(s.summary, strings.TrimSpace(m[1]))
			continue
		}
		if m := keywordsLabel.FindStringSubmatch(line); m != nil {
			s.doc.Keywords = appendUnique(s.doc.Keywords, splitList(m[1])...)
			continue
		}
		if m := skillsLabel.FindStringSubmatch(line); m != nil {
			s.addSkills(splitList(m[2]), strings.EqualFold(m[1], "soft"))
			continue
		}

		bullet := isBulletLine(line)
		body := stripBullet(line)

		if bullet && s.current >= 0 && active != sectionSkills && active != sectionCertifications {
			entry := &s.doc.Experience[s.current]
			entry.Bullets = appendUnique(entry.Bullets, body)
			continue
		}

		switch active {
		case sectionSummary:
			s.summary = append(s.summary, body)
			continue
		case sectionSkills:
			s.addSkills(splitList(body), false)
			continue
		case sectionEducation:
			if e, ok := parseEducation(body, true); ok {
				s.doc.Education = append(s.doc.Education, e)
			}
			continue
		case sectionCertifications:
			if c, ok := parseCertification(body, true); ok {
				s.doc.Certifications = append(s.doc.Certifications, c)
			}
			continue
		case sectionExperience:
			if e, ok := parseExperienceLine(body, true); ok {
				s.addExperience(e)
			}
			continue
		}

		// Outside any section only résumé-shaped lines count
		if e, ok := parseExperienceLine(body, false); ok {
			s.addExperience(e)
			continue
		}
		if e, ok := parseEducation(body, false); ok {
			s.doc.Education = append(s.doc.Education, e)
			continue
		}
		if !strings.HasPrefix(strings.ToLower(body), "i ") {
			if c, ok := parseCertification(body, false); ok {
				s.doc.Certifications = append(s.doc.Certifications, c)
			}
		}
	}

	if len(s.summary) > 0 {
		s.doc.Summary = strings.Join(s.summary, " ")
	}
}

// sentences picks up conversational phrasing that spans a single line.
func (s *scan) sentences(text string) {
	for _, m := range workSentence.FindAllStringSubmatchIndex(text, -1) {
		role := strings.TrimSpace(text[m[2]:m[3]])
		company := strings.TrimSpace(text[m[4]:m[5]])
		if !hasRoleNoun(role) {
			continue
		}
		e := types.ExperienceEntry{Role: titleCase(trimArticle(role)), Company: company}
		rest := text[m[1]:]
		if end := strings.IndexAny(rest, ".\n!?"); end >= 0 {
			rest = rest[:end]
		}
		if r := dateRange.FindStringSubmatch(rest); r != nil {
			e.StartDate, e.EndDate = r[1], normalizeEnd(r[2])
		}
		s.addExperience(e)
	}

	for _, m := range certSentence.FindAllStringSubmatch(text, -1) {
		phrase := strings.TrimSpace(m[1])
		if !certWords.MatchString(phrase) {
			continue
		}
		if c, ok := parseCertification(phrase, true); ok {
			s.doc.Certifications = appendCert(s.doc.Certifications, c)
		}
	}

	if len(s.doc.Education) == 0 {
		for _, sentence := range splitSentences(text) {
			if e, ok := parseEducation(sentence, false); ok {
				s.doc.Education = append(s.doc.Education, e)
			}
		}
	}

	for _, m := range skillsQuote.FindAllStringSubmatch(text, -1) {
		s.addSkills(splitList(m[1]), false)
	}
}

func (s *scan) addExperience(e types.ExperienceEntry) {
	for i := range s.doc.Experience {
		existing := &s.doc.Experience[i]
		if strings.EqualFold(existing.Role, e.Role) && strings.EqualFold(existing.Company, e.Company) {
			if existing.StartDate == "" {
				existing.StartDate = e.StartDate
			}
			if existing.EndDate == "" {
				existing.EndDate = e.EndDate
			}
			s.current = i
			return
		}
	}
	s.doc.Experience = append(s.doc.Experience, e)
	s.current = len(s.doc.Experience) - 1
}

func (s *scan) addSkills(items []string, soft bool) {
	for _, item := range items {
		if !plausibleSkill(item) {
			continue
		}
		if soft || softSkills[strings.ToLower(item)] {
			s.doc.Skills.Soft = appendUnique(s.doc.Skills.Soft, item)
		} else {
			s.doc.Skills.Hard = appendUnique(s.doc.Skills.Hard, item)
		}
	}
}

// parseExperienceLine reads "Role at Company (2019 - 2022)" and
// "Role, Company, 2019 - 2022" shaped lines. Outside an experience section
// a role noun and a date range are both required.
func parseExperienceLine(line string, inSection bool) (types.ExperienceEntry, bool) {
	var e types.ExperienceEntry
	if !inSection && firstPerson.MatchString(line) {
		return e, false
	}
	rest := line
	if r := dateRange.FindStringSubmatchIndex(line); r != nil {
		e.StartDate = line[r[2]:r[3]]
		e.EndDate = normalizeEnd(line[r[4]:r[5]])
		rest = line[:r[0]] + line[r[1]:]
	} else if !inSection {
		return e, false
	}
	rest = strings.Trim(parenPattern.ReplaceAllString(rest, ""), " ,|-–—()")

	var role, company string
	lower := strings.ToLower(rest)
	switch {
	case strings.Contains(lower, " at "):
		i := strings.Index(lower, " at ")
		role, company = rest[:i], rest[i+4:]
	case strings.Contains(rest, " @ "):
		i := strings.Index(rest, " @ ")
		role, company = rest[:i], rest[i+3:]
	default:
		parts := splitFields(rest)
		if len(parts) < 2 {
			return e, false
		}
		role, company = parts[0], parts[1]
		if !hasRoleNoun(role) && hasRoleNoun(company) {
			role, company = company, role
		}
		if len(parts) > 2 && e.Location == "" {
			e.Location = parts[2]
		}
	}

	role = strings.Trim(strings.TrimSpace(role), ",|-–—")
	company = strings.Trim(strings.TrimSpace(company), ",|-–—")
	if i := strings.IndexAny(company, ",|"); i >= 0 {
		if e.Location == "" {
			e.Location = strings.TrimSpace(company[i+1:])
		}
		company = strings.TrimSpace(company[:i])
	}
	if role == "" || company == "" || len(role) > 80 || len(company) > 80 {
		return e, false
	}
	if !hasRoleNoun(role) && !inSection {
		return e, false
	}
	e.Role, e.Company = trimArticle(role), company
	return e, true
}

func parseEducation(text string, inSection bool) (types.EducationEntry, bool) {
	var e types.EducationEntry
	d := degreePattern.FindStringSubmatchIndex(text)
	hasSchool := schoolWords.MatchString(text)
	if d == nil && !(inSection && hasSchool) {
		return e, false
	}
	if d != nil {
		e.Degree = normalizeDegree(text[d[2]:d[3]])
		after := text[d[3]:]
		if m := fieldPattern.FindStringSubmatch(after); m != nil && !schoolWords.MatchString(m[1]) {
			e.Field = titleCase(strings.TrimSpace(m[1]))
		}
	}
	if m := schoolPattern.FindStringSubmatch(text); m != nil {
		e.Institution = strings.TrimSpace(m[1])
	} else if hasSchool {
		for _, part := range splitFields(parenPattern.ReplaceAllString(text, "")) {
			if schoolWords.MatchString(part) {
				e.Institution = part
				break
			}
		}
	}
	if r := dateRange.FindStringSubmatch(text); r != nil {
		e.StartDate, e.EndDate = r[1], normalizeEnd(r[2])
	} else if y := singleYear.FindAllString(text, -1); len(y) > 0 {
		e.EndDate = y[len(y)-1]
	}
	if e.Degree == "" && e.Institution == "" {
		return e, false
	}
	// A degree word alone in conversation ("a master of small talk") is not enough
	if !inSection && e.Institution == "" && e.Field == "" {
		return e, false
	}
	return e, true
}

func parseCertification(text string, inSection bool) (types.Certification, bool) {
	var c types.Certification
	if !inSection && (!certWords.MatchString(text) || len(text) > 100) {
		return c, false
	}

	if m := parenPattern.FindStringSubmatch(text); m != nil {
		for _, part := range splitFields(m[1]) {
			if singleYear.MatchString(part) {
				continue
			}
			if c.Issuer == "" {
				c.Issuer = part
			}
		}
	}
	name := strings.TrimSpace(parenPattern.ReplaceAllString(text, ""))
	if m := issuerPattern.FindStringSubmatchIndex(name); m != nil {
		if c.Issuer == "" {
			c.Issuer = name[m[2]:m[3]]
		}
		name = strings.TrimSpace(name[:m[0]])
	}
	if y := singleYear.FindAllString(text, -1); len(y) > 0 {
		c.Date = y[len(y)-1]
		name = strings.TrimSpace(singleYear.ReplaceAllString(name, ""))
	}
	name = strings.Trim(name, " ,-–—|")
	lower := strings.ToLower(name)
	for _, suffix := range []string{" certification", " certificate"} {
		if strings.HasSuffix(lower, suffix) && strings.Contains(lower, "certified") {
			name = name[:len(name)-len(suffix)]
		}
	}
	if len(name) < 2 {
		return c, false
	}
	c.Name = name
	return c, true
}

func findPhone(text string) string {
	for _, candidate := range phonePattern.FindAllString(text, -1) {
		candidate = strings.TrimSpace(candidate)
		check := strings.Trim(candidate, "() ")
		if yearRange.MatchString(check) || isoDate.MatchString(check) {
			continue
		}
		digits := 0
		for _, r := range candidate {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits >= 7 && digits <= 15 {
			return candidate
		}
	}
	return ""
}

func findLinks(text string) []string {
	var links []string
	for _, l := range linkPattern.FindAllString(text, -1) {
		l = strings.TrimRight(l, ".,;:!?")
		links = appendUnique(links, l)
	}
	return links
}

func findName(text string) string {
	if m := namePhrase.FindStringSubmatch(text); m != nil {
		if n := cleanName(m[1]); n != "" {
			return n
		}
	}
	if m := selfPhrase.FindStringSubmatch(text); m != nil {
		if n := cleanName(m[1]); len(strings.Fields(n)) >= 2 {
			return n
		}
	}
	// A résumé usually opens with the candidate's name on its own line
	lines := nonEmptyLines(text)
	if len(lines) >= 3 && nameLine.MatchString(lines[0]) && !hasRoleNoun(lines[0]) {
		if _, ok := sectionHeadings[strings.ToLower(lines[0])]; !ok {
			return lines[0]
		}
	}
	return ""
}

// cleanName drops trailing words that are clearly not part of a name.
func cleanName(candidate string) string {
	words := strings.Fields(candidate)
	for i, w := range words {
		if hasRoleNoun(w) || isStopWord(w) {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

func findHeadline(text string) string {
	for _, m := range headlineQuote.FindAllStringSubmatch(text, -1) {
		h := m[1]
		lower := strings.ToLower(h)
		for _, sep := range []string{" at ", " for ", " with ", " and ", " who ", " based "} {
			if i := strings.Index(lower, sep); i >= 0 {
				h, lower = h[:i], lower[:i]
			}
		}
		if hasRoleNoun(h) {
			return titleCase(strings.TrimSpace(h))
		}
	}
	lines := nonEmptyLines(text)
	if len(lines) >= 3 && nameLine.MatchString(lines[0]) && len(lines[1]) < 80 &&
		hasRoleNoun(lines[1]) && !strings.Contains(lines[1], ":") && !dateRange.MatchString(lines[1]) {
		return lines[1]
	}
	return ""
}

func hasRoleNoun(s string) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		for _, noun := range roleNouns {
			if w == noun || w == noun+"s" {
				return true
			}
		}
	}
	return false
}

func isStopWord(w string) bool {
	switch strings.ToLower(w) {
	case "and", "the", "a", "an", "from", "in", "at", "i", "my", "here", "currently", "based":
		return true
	}
	return false
}

func plausibleSkill(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 1 || len(s) > 40 || len(strings.Fields(s)) > 4 {
		return false
	}
	return !isStopWord(s)
}

func submatch(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, item := range listSplit.Split(strings.TrimRight(s, "."), -1) {
		item = strings.Trim(strings.TrimSpace(item), "\"'`")
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func splitFields(s string) []string {
	var out []string
	for _, part := range fieldSplit.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, existing := range list {
			if strings.EqualFold(existing, v) {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, v)
		}
	}
	return list
}

func appendCert(list []types.Certification, c types.Certification) []types.Certification {
	for _, existing := range list {
		if strings.EqualFold(existing.Name, c.Name) {
			return list
		}
	}
	return append(list, c)
}

func normalizeEnd(s string) string {
	switch strings.ToLower(s) {
	case "present", "current", "now", "today":
		return "Present"
	}
	return s
}

func normalizeDegree(s string) string {
	compact := strings.ToLower(strings.NewReplacer(".", "", "'s", "", " degree", "").Replace(strings.TrimSpace(s)))
	switch compact {
	case "bs", "bsc":
		return "BSc"
	case "ba":
		return "BA"
	case "beng":
		return "BEng"
	case "ms", "msc":
		return "MSc"
	case "ma":
		return "MA"
	case "meng":
		return "MEng"
	case "mba":
		return "MBA"
	case "phd":
		return "PhD"
	}
	return titleCase(compact)
}

func trimArticle(s string) string {
	lower := strings.ToLower(s)
	for _, a := range []string{"a ", "an ", "the "} {
		if strings.HasPrefix(lower, a) {
			return strings.TrimSpace(s[len(a):])
		}
	}
	return strings.TrimSpace(s)
}

// titleCase upper-cases the first letter of each word, leaving acronyms and
// short connectives alone.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if i > 0 && (w == "of" || w == "and" || w == "in" || w == "for") {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
