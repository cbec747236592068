// Package compiler compiles CUE rule files and checks run summaries
// against them.
//
// A rule file holds a top-level "rule" struct. Each field is one named
// rule whose "check" struct constrains the summary document:
//
//	rule: no_malformed: {
//		description: "every recognized line parses"
//		check: malformed: 0
//	}
//	rule: has_top_task: check: per_kind: TopTask: >=1
//
// A summary satisfies a rule when it unifies with the check and carries
// every field the check names.
package compiler
