package advisor

import (
	"fmt"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/agent"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

// deterministicFallback is used whenever the advisor is unreachable or its
// response can't be trusted. It mirrors the historical
// _deterministic_fallback rule set, reasons expressed in Romanian as the
// original did.
func deterministicFallback(q agent.Query) (agent.Action, string) {
	if q.Self.Priority == vehicle.EmergencyPriority {
		return agent.Go, "urgență — prioritate absolută"
	}

	for _, o := range q.Others {
		otherTTC := agent.TimeToIntersection(o)
		if otherTTC >= agent.TTCBrake*2 {
			continue
		}
		if o.Priority == vehicle.EmergencyPriority {
			return agent.Yield, fmt.Sprintf("urgență %s — prioritate absolută", o.ID)
		}
		if o.NoStop && otherTTC < q.TTC {
			return agent.Yield, fmt.Sprintf("%s nu se oprește — cedează", o.ID)
		}
		if vehicle.RightOf[q.Self.Direction] == o.Direction {
			return agent.Yield, fmt.Sprintf("%s vine din dreapta — regula de prioritate", o.ID)
		}
		if otherTTC < q.TTC-0.5 {
			return agent.Yield, fmt.Sprintf("TTC mai mic: %s ajunge primul", o.ID)
		}
	}

	return agent.Go, "drum liber — niciun conflict"
}
