package oracle

import (
	"fmt"
	"regexp"
	"strings"

	"cracksql/internal/rewrite"
)

// Unsupported is the word the model is told to answer with when a snippet
// has no equivalent in the target dialect.
const Unsupported = "UNSUPPORTED"

var (
	fencedBlock = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\r?\n?(.*?)```")
	declined    = regexp.MustCompile(`(?i)^\W*` + Unsupported + `\W*$`)
)

func systemPrompt(req rewrite.Request) string {
	return fmt.Sprintf("You are an expert in %s and %s SQL. You rewrite small SQL fragments "+
		"so that they keep their meaning and become valid %s.", req.Source, req.Target, req.Target)
}

func userPrompt(req rewrite.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite this %s snippet as %s:\n\n```sql\n%s\n```\n", req.Source, req.Target, req.Snippet)

	if req.Description != "" {
		fmt.Fprintf(&b, "\nAbout %s in %s:\n%s\n", req.Keyword, req.Source, req.Description)
	}
	if req.Detail != "" {
		fmt.Fprintf(&b, "\nDetails:\n%s\n", req.Detail)
	}
	if len(req.Placeholders) > 0 {
		fmt.Fprintf(&b, "\n%s stand for parts of the statement that are already correct. "+
			"Keep every one of them, spelled exactly the same.\n", strings.Join(req.Placeholders, ", "))
	}
	if len(req.Hints) > 0 {
		b.WriteString("\nEarlier answers were rejected:\n")
		for i, h := range req.Hints {
			fmt.Fprintf(&b, "%d. %s\n", i+1, h)
		}
	}
	fmt.Fprintf(&b, "\nAnswer with the rewritten snippet only, inside one ```sql block. "+
		"If %s has no equivalent, answer %s.", req.Target, Unsupported)
	return b.String()
}

// ExtractSQL pulls the rewritten snippet out of a model reply. The first
// fenced block wins; without one the whole reply is used. It reports false
// when the reply is empty or declines.
func ExtractSQL(reply string) (string, bool) {
	text := reply
	if m := fencedBlock.FindStringSubmatch(reply); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	if text == "" || declined.MatchString(text) {
		return "", false
	}
	return text, true
}
