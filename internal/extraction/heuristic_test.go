package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-coach/internal/types"
)

const resumeText = `Ana Lima
Senior Backend Engineer
ana.lima@example.com | +1 415 555 0100 | https://github.com/analima
Lisbon, Portugal

Summary
Backend engineer focused on payments.

Experience
Senior Backend Engineer at Acme Corp (Jan 2020 - Present)
• Cut p99 latency by 40%
• Led migration to Kubernetes
Software Engineer, Globex, 2017 - 2019

Education
BSc in Computer Science, University of Lisbon, 2017

Skills
Go, PostgreSQL, Kubernetes, Leadership

Certifications
AWS Certified Solutions Architect (Amazon, 2022)`

func TestHeuristic_ResumeDocument(t *testing.T) {
	p := NewHeuristic().Extract(resumeText)

	assert.Equal(t, "Ana Lima", p.Header.FullName)
	assert.Equal(t, "Senior Backend Engineer", p.Header.Headline)
	assert.Equal(t, "ana.lima@example.com", p.Header.Email)
	assert.Equal(t, "+1 415 555 0100", p.Header.Phone)
	assert.Equal(t, []string{"https://github.com/analima"}, p.Header.Links)
	assert.Equal(t, "Backend engineer focused on payments.", p.Summary)

	require.Len(t, p.Experience, 2)
	assert.Equal(t, types.ExperienceEntry{
		Role:      "Senior Backend Engineer",
		Company:   "Acme Corp",
		StartDate: "Jan 2020",
		EndDate:   "Present",
		Bullets:   []string{"Cut p99 latency by 40%", "Led migration to Kubernetes"},
	}, p.Experience[0])
	assert.Equal(t, "Software Engineer", p.Experience[1].Role)
	assert.Equal(t, "Globex", p.Experience[1].Company)
	assert.Equal(t, "2017", p.Experience[1].StartDate)
	assert.Equal(t, "2019", p.Experience[1].EndDate)

	require.Len(t, p.Education, 1)
	assert.Equal(t, "BSc", p.Education[0].Degree)
	assert.Equal(t, "Computer Science", p.Education[0].Field)
	assert.Equal(t, "University of Lisbon", p.Education[0].Institution)
	assert.Equal(t, "2017", p.Education[0].EndDate)

	assert.Equal(t, []string{"Go", "PostgreSQL", "Kubernetes"}, p.Skills.Hard)
	assert.Equal(t, []string{"Leadership"}, p.Skills.Soft)

	require.Len(t, p.Certifications, 1)
	assert.Equal(t, types.Certification{Name: "AWS Certified Solutions Architect", Issuer: "Amazon", Date: "2022"}, p.Certifications[0])
}

func TestHeuristic_EmailOnlyMessage(t *testing.T) {
	p := NewHeuristic().Extract("my email is ana@example.com")

	assert.Equal(t, "ana@example.com", p.Header.Email)
	updates := p.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, types.SectionHeader, updates[0].Section)
	assert.JSONEq(t, `{"email":"ana@example.com"}`, string(updates[0].Payload))
}

func TestHeuristic_ConversationalMessage(t *testing.T) {
	msg := "Hi, I'm Ana Lima, a backend engineer based in Lisbon. " +
		"I worked as a Backend Engineer at Acme Corp from 2019 to 2022. I know Go, Python and SQL."
	p := NewHeuristic().Extract(msg)

	assert.Equal(t, "Ana Lima", p.Header.FullName)
	assert.Equal(t, "Lisbon", p.Header.Location)
	assert.Empty(t, p.Header.Phone)

	require.Len(t, p.Experience, 1)
	assert.Equal(t, "Backend Engineer", p.Experience[0].Role)
	assert.Equal(t, "Acme Corp", p.Experience[0].Company)
	assert.Equal(t, "2019", p.Experience[0].StartDate)
	assert.Equal(t, "2022", p.Experience[0].EndDate)

	assert.Equal(t, []string{"Go", "Python", "SQL"}, p.Skills.Hard)
}

func TestHeuristic_NothingToExtract(t *testing.T) {
	h := NewHeuristic()
	for _, msg := range []string{
		"",
		"   ",
		"Can you make my summary sound more confident?",
		"Thanks, that looks great!",
		"I worked on it from 2019 - 2022",
	} {
		assert.True(t, h.Extract(msg).IsEmpty(), msg)
	}
}

func TestHeuristic_PhoneIgnoresDates(t *testing.T) {
	assert.Empty(t, findPhone("Engineer (2019 - 2022)"))
	assert.Empty(t, findPhone("since 2021-03-01"))
	assert.Equal(t, "(415) 555-0100", findPhone("call me at (415) 555-0100"))
}

func TestHeuristic_NameRejectsTitles(t *testing.T) {
	assert.Empty(t, findName("I am Senior Engineer"))
	assert.Equal(t, "Ana", findName("My name is Ana"))
}

func TestHeuristic_InputIsBounded(t *testing.T) {
	h := &Heuristic{MaxInput: 32}
	p := h.Extract(strings.Repeat("x", 40) + " ana@example.com")
	assert.Empty(t, p.Header.Email)
}

func TestHeuristic_CertificationSentence(t *testing.T) {
	p := NewHeuristic().Extract("I have the AWS Certified Developer certification from Amazon")
	require.Len(t, p.Certifications, 1)
	assert.Equal(t, "AWS Certified Developer", p.Certifications[0].Name)
	assert.Equal(t, "Amazon", p.Certifications[0].Issuer)
}

func TestCleanText(t *testing.T) {
	in := "Ana   Lima\r\n\r\n\r\n\r\n• Led   team\t \n"
	assert.Equal(t, "Ana Lima\n\n- Led team", CleanText(in))
	assert.Equal(t, "", CleanText(""))
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage("I worked with the team in Lisbon and led the migration"))
	assert.Equal(t, "es", DetectLanguage("Trabajé como ingeniero en la empresa de pagos con el equipo de datos"))
	assert.Equal(t, "", DetectLanguage("Go"))
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash([]byte("a")), ContentHash([]byte("a")))
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
	assert.Len(t, ContentHash(nil), 64)
}
