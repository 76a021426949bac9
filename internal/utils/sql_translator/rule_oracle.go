package sql_translator

import (
	"context"
	"regexp"
	"strings"

	"cracksql/internal/dialect"
	"cracksql/internal/rewrite"
)

// rule rewrites the snippets of one keyword into target.
type rule struct {
	keyword string
	target  dialect.Dialect
	pattern *regexp.Regexp
	// replace is a regexp template, used when apply is nil.
	replace string
	apply   func(snippet string) (string, bool)
}

func (r rule) rewrite(snippet string) (string, bool) {
	if r.apply != nil {
		return r.apply(snippet)
	}
	if !r.pattern.MatchString(snippet) {
		return "", false
	}
	return r.pattern.ReplaceAllString(snippet, r.replace), true
}

var (
	ifnullCall   = regexp.MustCompile(`(?i)^\s*IFNULL\s*\(`)
	nvlCall      = regexp.MustCompile(`(?i)^\s*NVL\s*\(`)
	nvl2Call     = regexp.MustCompile(`(?is)^\s*NVL2\s*\(\s*(.+?)\s*,\s*(.+?)\s*,\s*(.+?)\s*\)\s*$`)
	ifCall       = regexp.MustCompile(`(?is)^\s*IF\s*\(\s*(.+?)\s*,\s*(.+?)\s*,\s*(.+?)\s*\)\s*$`)
	substringFn  = regexp.MustCompile(`(?i)^\s*SUBSTRING\s*\(`)
	nowCall      = regexp.MustCompile(`(?i)^\s*NOW\s*\(\s*\)\s*$`)
	sysdate      = regexp.MustCompile(`(?i)^\s*(SYSDATE|SYSTIMESTAMP)\s*$`)
	limitComma   = regexp.MustCompile(`(?i)^\s*LIMIT\s+(\S+?)\s*,\s*(\S+)\s*$`)
	limitOffset  = regexp.MustCompile(`(?i)^\s*LIMIT\s+(\S+)\s+OFFSET\s+(\S+)\s*$`)
	limitOnly    = regexp.MustCompile(`(?i)^\s*LIMIT\s+(\S+)\s*$`)
	groupConcat  = regexp.MustCompile(`(?i)^\s*GROUP_CONCAT\s*\(\s*([^(),]+?)\s*\)\s*$`)
	typecast     = regexp.MustCompile(`(?s)^\s*(.+?)\s*::\s*(\w+(?:\s*\(\s*\d+(?:\s*,\s*\d+)?\s*\))?)\s*$`)
	ilike        = regexp.MustCompile(`(?is)^\s*(.+?)\s+ILIKE\s+(.+?)\s*$`)
	intDiv       = regexp.MustCompile(`(?is)^\s*(.+?)\s+DIV\s+(.+?)\s*$`)
	minusKeyword = regexp.MustCompile(`(?i)\bMINUS\b`)
	concatOp     = regexp.MustCompile(`\s*\|\|\s*`)
)

var builtinRules = []rule{
	{keyword: "IFNULL", target: dialect.PostgreSQL, pattern: ifnullCall, replace: "COALESCE("},
	{keyword: "IFNULL", target: dialect.Oracle, pattern: ifnullCall, replace: "NVL("},
	{keyword: "NVL", target: dialect.MySQL, pattern: nvlCall, replace: "IFNULL("},
	{keyword: "NVL", target: dialect.PostgreSQL, pattern: nvlCall, replace: "COALESCE("},
	{keyword: "NVL2", pattern: nvl2Call, replace: "CASE WHEN $1 IS NOT NULL THEN $2 ELSE $3 END"},
	{keyword: "IF", pattern: ifCall, replace: "CASE WHEN $1 THEN $2 ELSE $3 END"},
	{keyword: "SUBSTRING", target: dialect.Oracle, pattern: substringFn, replace: "SUBSTR("},
	{keyword: "NOW", target: dialect.Oracle, pattern: nowCall, replace: "SYSTIMESTAMP"},
	{keyword: "SYSDATE", target: dialect.MySQL, pattern: sysdate, replace: "NOW()"},
	{keyword: "SYSDATE", target: dialect.PostgreSQL, pattern: sysdate, replace: "NOW()"},
	{keyword: "SYSTIMESTAMP", target: dialect.MySQL, pattern: sysdate, replace: "NOW()"},
	{keyword: "SYSTIMESTAMP", target: dialect.PostgreSQL, pattern: sysdate, replace: "NOW()"},
	{keyword: "LIMIT_COMMA", target: dialect.PostgreSQL, pattern: limitComma, replace: "LIMIT $2 OFFSET $1"},
	{keyword: "LIMIT_COMMA", target: dialect.Oracle, pattern: limitComma, replace: "OFFSET $1 ROWS FETCH NEXT $2 ROWS ONLY"},
	{keyword: "LIMIT_OFFSET", target: dialect.Oracle, pattern: limitOffset, replace: "OFFSET $2 ROWS FETCH NEXT $1 ROWS ONLY"},
	{keyword: "LIMIT", target: dialect.Oracle, pattern: limitOnly, replace: "FETCH FIRST $1 ROWS ONLY"},
	{keyword: "GROUP_CONCAT", target: dialect.PostgreSQL, pattern: groupConcat, replace: "STRING_AGG($1, ',')"},
	{keyword: "GROUP_CONCAT", target: dialect.Oracle, pattern: groupConcat, replace: "LISTAGG($1, ',') WITHIN GROUP (ORDER BY $1)"},
	{keyword: "TYPECAST", pattern: typecast, replace: "CAST($1 AS $2)"},
	{keyword: "ILIKE", target: dialect.MySQL, pattern: ilike, replace: "$1 LIKE $2"},
	{keyword: "ILIKE", target: dialect.Oracle, pattern: ilike, replace: "UPPER($1) LIKE UPPER($2)"},
	{keyword: "DIV", target: dialect.PostgreSQL, pattern: intDiv, replace: "DIV($1, $2)"},
	{keyword: "DIV", target: dialect.Oracle, pattern: intDiv, replace: "TRUNC($1 / $2)"},
	{keyword: "MINUS", target: dialect.PostgreSQL, apply: func(s string) (string, bool) {
		if !minusKeyword.MatchString(s) {
			return "", false
		}
		return minusKeyword.ReplaceAllString(s, "EXCEPT"), true
	}},
	{keyword: "CONCAT_OP", target: dialect.MySQL, apply: func(s string) (string, bool) {
		parts := concatOp.Split(strings.TrimSpace(s), -1)
		if len(parts) < 2 {
			return "", false
		}
		return "CONCAT(" + strings.Join(parts, ", ") + ")", true
	}},
}

// RuleOracle answers from a fixed table of rewrites of the commonest
// constructs and declines everything else. It needs no network and serves
// as the oracle when no chat endpoint is configured.
type RuleOracle struct {
	rules []rule
}

var _ rewrite.Oracle = (*RuleOracle)(nil)

// NewRuleOracle returns a RuleOracle with the built-in rules.
func NewRuleOracle() *RuleOracle {
	return &RuleOracle{rules: builtinRules}
}

// TranslateSnippet implements rewrite.Oracle. A rule that produced an
// answer which was later rejected is not tried again.
func (o *RuleOracle) TranslateSnippet(ctx context.Context, req rewrite.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, r := range o.rules {
		if !strings.EqualFold(r.keyword, req.Keyword) || (r.target != "" && r.target != req.Target) {
			continue
		}
		out, ok := r.rewrite(req.Snippet)
		if !ok || len(req.Hints) > 0 {
			continue
		}
		return out, nil
	}
	return "", rewrite.ErrUnsupportedByOracle.New(req.Keyword)
}

// Keywords lists the keywords with at least one rule into target.
func (o *RuleOracle) Keywords(target dialect.Dialect) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range o.rules {
		if (r.target == "" || r.target == target) && !seen[r.keyword] {
			seen[r.keyword] = true
			out = append(out, r.keyword)
		}
	}
	return out
}
