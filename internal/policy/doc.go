// Package policy implements the Policy & Guard component: pure predicates
// over path/URL/command targets and the user-configured allow/deny rule
// set, plus the command-safety validator used by the bash and background
// tools.
//
// The decision order and default-deny contract are the spec's own (not
// the teacher's interactive approve/ask/remember flow); the bash command
// parsing and path-extraction helpers below are adapted directly from the
// teacher's permission package (mvdan.cc/sh/v3-based).
package policy
