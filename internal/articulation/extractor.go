// Package articulation post-processes raw model output. Models routinely
// leak internal deliberation into their replies; Extract separates that
// reasoning from the user-facing answer with a cascade of structural and
// heuristic passes.
package articulation

import (
	"encoding/json"
	"regexp"
	"strings"
)

// reasoningVocab is the fixed vocabulary of reasoning synonyms recognized
// in tag names and paragraph openers.
const reasoningVocab = "thinking|thought|thoughts|reasoning|reason|plan|planning|analysis|analyzing|" +
	"reflection|reflecting|consideration|considering|deliberation|deliberating|" +
	"ponder|pondering|contemplate|contemplating|muse|musing|cogitate|cogitating|" +
	"brainstorm|brainstorming|evaluate|evaluating|assess|assessing|review|reviewing|examine|examining"

// tagVocab additionally admits the bare word "think", which appears in tag
// names (<think>) but is too short to gate untagged paragraphs on.
const tagVocab = reasoningVocab + "|think"

var (
	// taggedRe matches explicitly delimited reasoning markup: open/close
	// pairs or self-closing tags whose name contains a vocabulary word.
	taggedRe = regexp.MustCompile(`(?i)<[^>]*?(?:` + tagVocab + `)[^>]*>[\s\S]*?</[^>]*?(?:` + tagVocab + `)[^>]*>|<[^>]*?(?:` + tagVocab + `)[^>]*/>`)

	// vocabWordRe matches a vocabulary word at the start of a string.
	vocabWordRe = regexp.MustCompile(`(?i)^(?:` + reasoningVocab + `)`)

	// conflictRe finds a sentence-initial discourse marker or a meta
	// vocabulary word appearing after whitespace, signalling that the
	// model switched from answering to deliberating.
	conflictRe = regexp.MustCompile(`(?i)\s+(But|However|Wait|Actually|On second thought|There's a conflict|Let me think|I need to|The system says|The user says|Wait a minute|Hold on|system prompt|instructions|task|must|output|scene|description|perspective|setting|lighting|photo|detailed|photorealistic|` + reasoningVocab + `)`)

	// firstPersonRe detects the first-person voice expected of answers.
	firstPersonRe = regexp.MustCompile(`(?i)\b(I|my|me)\b`)

	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	blankRunsRe     = regexp.MustCompile(`\n{3,}`)

	reasoningStepsMarker = "here are my reasoning steps:"
)

// Result is the separated output of Extract. Answer and Thinking are
// disjoint slices of the raw text; Thinking may be empty.
type Result struct {
	Answer   string
	Thinking string
}

// Extract separates reasoning spans from the user-facing answer. Every
// pass inspects the original raw text, not the partially cleaned one, so
// regex artifacts never compound. The function never fails; at worst the
// input comes back unchanged as the answer.
func Extract(raw string) Result {
	if raw == "" {
		return Result{Answer: raw}
	}

	var thoughts []string

	// Pass 1: explicitly delimited reasoning markup.
	for _, m := range taggedRe.FindAllString(raw, -1) {
		thoughts = append(thoughts, strings.TrimSpace(m))
	}

	// Pass 2: untagged paragraphs opening with a vocabulary word.
	for _, span := range untaggedSpans(raw) {
		if containedInAny(thoughts, span) {
			continue
		}
		if len(span) > 10 {
			thoughts = append(thoughts, span)
		}
	}

	// Pass 3: a literal reasoning-steps preamble.
	if span := reasoningStepsSpan(raw); span != "" {
		thoughts = append(thoughts, span)
	}

	// Pass 4: reasoning leaked after an otherwise-complete answer.
	if span := conflictSpan(raw); span != "" {
		thoughts = append(thoughts, span)
	}

	// Pass 5: sentences without first-person narration, when first-person
	// sentences are also present.
	if span := thirdPersonSpan(raw); span != "" {
		thoughts = append(thoughts, span)
	}

	// Subtract captured spans by literal substring removal; re-matching
	// with the tag regex on the cleaned text would over-delete.
	cleaned := raw
	for _, thought := range thoughts {
		cleaned = strings.Replace(cleaned, thought, "", 1)
	}
	cleaned = strings.TrimSpace(taggedRe.ReplaceAllString(cleaned, ""))

	// Callers expecting structured output tolerate surrounding prose the
	// model added despite instructions; prefer a well-formed JSON object
	// when one spans the remaining text.
	if jsonPart := embeddedJSON(cleaned); jsonPart != "" {
		cleaned = jsonPart
	}

	cleaned = strings.TrimSpace(blankRunsRe.ReplaceAllString(cleaned, "\n\n"))

	return Result{
		Answer:   cleaned,
		Thinking: strings.Join(thoughts, "\n\n"),
	}
}

// untaggedSpans captures paragraphs that begin with a reasoning word, up
// to the next blank line or a line beginning with a capital letter. The
// boundary is heuristic; untagged reasoning has no explicit terminator.
func untaggedSpans(raw string) []string {
	var spans []string
	for i := 0; i < len(raw); i++ {
		if i != 0 && raw[i-1] != '\n' {
			continue
		}
		if !vocabWordRe.MatchString(raw[i:]) {
			continue
		}
		end := spanBoundary(raw, i)
		if span := strings.TrimSpace(raw[i:end]); span != "" {
			spans = append(spans, span)
		}
		i = end
	}
	return spans
}

// spanBoundary finds the first position at or after start where a blank
// line or a newline followed by a capital letter begins.
func spanBoundary(raw string, start int) int {
	for j := start; j < len(raw)-1; j++ {
		if raw[j] != '\n' {
			continue
		}
		next := raw[j+1]
		if next == '\n' || (next >= 'A' && next <= 'Z') {
			return j
		}
	}
	return len(raw)
}

// reasoningStepsSpan captures from a literal "Here are my reasoning
// steps:" marker up to the next blank line followed by a capital letter.
func reasoningStepsSpan(raw string) string {
	idx := strings.Index(strings.ToLower(raw), reasoningStepsMarker)
	if idx < 0 {
		return ""
	}
	end := len(raw)
	for j := idx; j < len(raw)-2; j++ {
		if raw[j] == '\n' && raw[j+1] == '\n' && raw[j+2] >= 'A' && raw[j+2] <= 'Z' {
			end = j
			break
		}
	}
	return strings.TrimSpace(raw[idx:end])
}

// conflictSpan handles models that append compliance reasoning after a
// complete first-person answer: when the text after the first conflict
// marker lacks first-person pronouns but contains meta vocabulary, it is
// reasoning, and what precedes it is the answer.
func conflictSpan(raw string) string {
	loc := conflictRe.FindStringIndex(raw)
	if loc == nil {
		return ""
	}
	answer := strings.TrimSpace(raw[:loc[0]])
	thinking := strings.TrimSpace(raw[loc[0]:])
	if len(answer) <= 20 || len(thinking) <= 10 {
		return ""
	}
	if strings.Contains(thinking, "I ") || strings.Contains(thinking, "my ") || strings.Contains(thinking, "me ") {
		return ""
	}
	for _, meta := range []string{
		"user", "system", "conflict", "think", "reasoning", "prompt",
		"instruction", "task", "perspective", "setting", "lighting",
		"photo", "detailed", "photorealistic",
	} {
		if strings.Contains(thinking, meta) {
			return thinking
		}
	}
	return ""
}

// thirdPersonSpan collects sentences without first-person pronouns when
// first-person sentences are also present; in this product the answer's
// expected voice is first-person narration.
func thirdPersonSpan(raw string) string {
	var firstPerson, other []string
	for _, s := range sentenceSplitRe.Split(raw, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if firstPersonRe.MatchString(s) {
			firstPerson = append(firstPerson, s)
		} else {
			other = append(other, s)
		}
	}
	if len(firstPerson) == 0 || len(other) == 0 {
		return ""
	}
	return strings.Join(other, ". ") + "."
}

// embeddedJSON returns the substring from the first '{' to the last '}'
// when it parses as valid JSON, else "".
func embeddedJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	candidate := s[start : end+1]
	if json.Valid([]byte(candidate)) {
		return candidate
	}
	return ""
}

func containedInAny(spans []string, s string) bool {
	for _, span := range spans {
		if strings.Contains(span, s) {
			return true
		}
	}
	return false
}
