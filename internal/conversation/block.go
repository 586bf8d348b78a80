package conversation

import (
	"encoding/json"
	"strings"

	"github.com/jonathan/resume-coach/internal/llm"
	"github.com/jonathan/resume-coach/internal/schemas"
	"github.com/jonathan/resume-coach/internal/types"
)

// Delimiters of the structured update block appended to a reply.
const (
	OpenTag  = "<resume_update>"
	CloseTag = "</resume_update>"
)

// blockFilter separates the update block from the visible reply while the
// reply streams in. A tag split across chunks is held back until it can be
// decided.
type blockFilter struct {
	pending string
	inBlock bool
	blocks  []string
	current strings.Builder
	visible strings.Builder
}

// Write consumes a chunk and returns the part of it that may be shown.
func (f *blockFilter) Write(chunk string) string {
	f.pending += chunk
	var out strings.Builder
	for {
		if !f.inBlock {
			if i := strings.Index(f.pending, OpenTag); i >= 0 {
				out.WriteString(f.pending[:i])
				f.pending = f.pending[i+len(OpenTag):]
				f.inBlock = true
				continue
			}
			keep := partialSuffix(f.pending, OpenTag)
			out.WriteString(f.pending[:len(f.pending)-keep])
			f.pending = f.pending[len(f.pending)-keep:]
			break
		}
		if i := strings.Index(f.pending, CloseTag); i >= 0 {
			f.current.WriteString(f.pending[:i])
			f.blocks = append(f.blocks, f.current.String())
			f.current.Reset()
			f.pending = f.pending[i+len(CloseTag):]
			f.inBlock = false
			continue
		}
		keep := partialSuffix(f.pending, CloseTag)
		f.current.WriteString(f.pending[:len(f.pending)-keep])
		f.pending = f.pending[len(f.pending)-keep:]
		break
	}
	f.visible.WriteString(out.String())
	return out.String()
}

// Flush ends the stream. Held-back text that never became a tag is returned
// as visible; an unterminated block is kept as a block.
func (f *blockFilter) Flush() string {
	rest := f.pending
	f.pending = ""
	if f.inBlock {
		f.current.WriteString(rest)
		f.blocks = append(f.blocks, f.current.String())
		f.current.Reset()
		f.inBlock = false
		return ""
	}
	f.visible.WriteString(rest)
	return rest
}

// Visible is the reply without update blocks.
func (f *blockFilter) Visible() string {
	return strings.TrimSpace(f.visible.String())
}

// Block returns the last update block seen, or "" when there was none.
func (f *blockFilter) Block() string {
	if len(f.blocks) == 0 {
		return ""
	}
	return f.blocks[len(f.blocks)-1]
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialSuffix(s, tag string) int {
	n := len(tag) - 1
	if len(s) < n {
		n = len(s)
	}
	for k := n; k > 0; k-- {
		if strings.HasSuffix(s, tag[:k]) {
			return k
		}
	}
	return 0
}

// ParseUpdates decodes an update block holding one update object or an
// array of them. The block is checked against the update schema first.
func ParseUpdates(block string) ([]types.Update, error) {
	raw := strings.TrimSpace(block)
	if raw == "" {
		return nil, &ExtractionFailure{Stage: "parse", Message: "no update block in reply"}
	}
	raw = llm.CleanJSONBlock(raw)
	if err := schemas.ValidateUpdateBlock([]byte(raw)); err != nil {
		return nil, &ExtractionFailure{Stage: "validate", Message: "update block does not match schema", Cause: err}
	}

	var updates []types.Update
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &updates); err != nil {
			return nil, &ExtractionFailure{Stage: "decode", Message: "malformed update array", Cause: err}
		}
		return updates, nil
	}
	var u types.Update
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, &ExtractionFailure{Stage: "decode", Message: "malformed update", Cause: err}
	}
	return []types.Update{u}, nil
}
