package access

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var reasonTitle = cases.Title(language.English)

// FormatDecision renders a Decision as a multi-line audit report. The output
// is a pure function of the decision and carries no correctness weight beyond
// determinism; it exists for logs and operator diagnostics.
func FormatDecision(d Decision) string {
	var b strings.Builder

	b.WriteString("=== ACCESS DECISION ===\n")
	fmt.Fprintf(&b, "At:      %s\n", d.At.Format(time.RFC3339))

	if d.UserName != "" {
		fmt.Fprintf(&b, "Holder:  %s (#%d)\n", d.UserName, d.UserID)
	} else {
		fmt.Fprintf(&b, "Holder:  #%d\n", d.UserID)
	}
	if d.PortalName != "" {
		fmt.Fprintf(&b, "Portal:  %s (#%d)\n", d.PortalName, d.PortalID)
	} else {
		fmt.Fprintf(&b, "Portal:  #%d\n", d.PortalID)
	}

	if len(d.Trace) > 0 {
		b.WriteString("Trace:\n")
		for _, entry := range d.Trace {
			b.WriteString("  " + formatTraceEntry(entry) + "\n")
		}
	}

	verdict := "DENIED"
	if d.Granted {
		verdict = "GRANTED"
	}
	fmt.Fprintf(&b, "Verdict: %s - %s", verdict, humanReason(d.Reason))
	if d.MatchedRule != nil {
		fmt.Fprintf(&b, " (rule #%d %q)", d.MatchedRule.ID, d.MatchedRule.Name)
	}
	b.WriteString("\n")

	return b.String()
}

func formatTraceEntry(e TraceEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rule #%d [%s] %q", e.RuleID, e.Kind, e.RuleName)
	if e.ViaGroup != nil {
		fmt.Fprintf(&b, " via group #%d", *e.ViaGroup)
	}
	switch e.Outcome {
	case OutcomeAlwaysOpen:
		b.WriteString(": no linked zones, always active")
	case OutcomeMatched:
		fmt.Fprintf(&b, ": matched zone #%d %q span %d", e.ZoneID, e.ZoneName, e.SpanIdx)
	default:
		b.WriteString(": no matching window")
	}
	return b.String()
}

// humanReason turns OUTSIDE_VALIDITY into "Outside Validity" and so on.
func humanReason(r Reason) string {
	return reasonTitle.String(strings.ToLower(strings.ReplaceAll(string(r), "_", " ")))
}
