package advisor

import (
	"fmt"
	"strings"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/agent"
)

const systemPrompt = `You are an autonomous V2X intersection agent. You perceive the environment through V2X radio messages from other vehicles and use your own memory of past decisions to make context-aware choices.
Your goal: safely cross the intersection without collision. You must reason autonomously — do NOT blindly follow fixed rules. Consider speed, distance, priorities, and your recent behavior.

Guidelines (not strict rules — use judgment):
  - Emergency vehicles (ambulance, fire truck) should always be given priority
  - Vehicles arriving much sooner (lower TTC) generally have practical priority
  - Avoid oscillating: if you just yielded, do not immediately switch to GO unless situation changed
  - Vehicles on the same road going opposite directions use separate lanes — no conflict
  - If no conflict exists, GO

Respond ONLY with JSON: {"action": "GO"|"YIELD"|"BRAKE", "reason": "short reason, max 8 words"}
`

// buildPrompt renders the single-vehicle decision prompt, grounded on
// llm_client.py's _get_single_decision prompt assembly.
func buildPrompt(q agent.Query, memory []agent.Decision) string {
	var others strings.Builder
	if len(q.Others) == 0 {
		others.WriteString("none")
	}
	for i, o := range q.Others {
		if i > 0 {
			others.WriteString(", ")
		}
		fmt.Fprintf(&others, "%s(ttc=%.1fs, prio=%s, dir=%s)", o.ID, agent.TimeToIntersection(o), o.Priority, o.Direction)
	}

	var mem strings.Builder
	if len(memory) > 0 {
		n := len(memory)
		start := n - 3
		if start < 0 {
			start = 0
		}
		mem.WriteString("My last decisions: ")
		for i, d := range memory[start:] {
			if i > 0 {
				mem.WriteString("; ")
			}
			reason := d.Reason
			if len(reason) > 25 {
				reason = reason[:25]
			}
			fmt.Fprintf(&mem, "%s (%s)", d.Action, reason)
		}
		mem.WriteString(".\n")
	}

	return fmt.Sprintf(
		"%s\nVehicle %s:\n  - TTC to intersection: %.1fs\n  - Priority: %s\n  - Direction: %s, Intent: %s\n  - Speed: %.0f km/h\n  - Distance to intersection: %.0fpx\nConflicting vehicles nearby: [%s].\n%sDecision (JSON only):",
		systemPrompt, q.Self.ID, q.TTC, q.Self.Priority, q.Self.Direction, q.Self.Intent, q.Self.SpeedKmh, q.Self.DistanceToCenter, others.String(), mem.String(),
	)
}
