// Package prompts builds the versioned LLM prompts used for term extraction
// and IC drafting. A version is bumped whenever a template's wording changes,
// so stored drafts and LLM runs can be traced to the exact prompt.
package prompts

// Prompt identifies one versioned template.
type Prompt struct {
	Name    string
	Version string
}

// ID returns the "name@version" form recorded on drafts.
func (p Prompt) ID() string {
	return p.Name + "@" + p.Version
}

var (
	ExtractTermsV1 = Prompt{Name: "extract_terms", Version: "v1"}
	ICDraftV1      = Prompt{Name: "ic_draft", Version: "v1"}
)

// JSONOnlySystemMessage is shared by every prompt; callers parse the reply as one JSON object.
const JSONOnlySystemMessage = "Return only strict JSON. No prose."
