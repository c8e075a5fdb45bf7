package engine

import (
	"math"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/agent"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

// assessRisk evaluates every pair of currently visible vehicles for a shared
// brake-horizon conflict, grounded on collision.py's assess_risk: a pair
// risks collision once both are within TTCBrake seconds of the
// intersection. risk is the single most urgent pair (lowest TTC, matching
// the original's single global result); zones lists every qualifying pair
// for visualization, which the original did not expose.
func assessRisk(order []string, records map[string]vehicle.Record) (RiskView, []RiskZone) {
	view := RiskView{TTC: 999.0, Action: "go"}
	var zones []RiskZone

	ttc := make(map[string]float64, len(records))
	for id, r := range records {
		ttc[id] = agent.TimeToIntersection(r)
	}

	for i := 0; i < len(order); i++ {
		id1 := order[i]
		r1, ok1 := records[id1]
		if !ok1 || ttc[id1] >= agent.TTCBrake {
			continue
		}
		for j := i + 1; j < len(order); j++ {
			id2 := order[j]
			r2, ok2 := records[id2]
			if !ok2 || ttc[id2] >= agent.TTCBrake {
				continue
			}

			minTTC := math.Min(ttc[id1], ttc[id2])
			action := "brake"
			level := "low"
			switch {
			case r1.Priority == vehicle.EmergencyPriority || r2.Priority == vehicle.EmergencyPriority || minTTC < agent.TTCYield:
				action = "yield"
				level = "high"
			case minTTC < 2.5:
				level = "medium"
			}

			zones = append(zones, RiskZone{
				X: vehicle.IntersectionX, Y: vehicle.IntersectionY,
				Radius:   riskRadius(minTTC),
				Level:    level,
				Vehicles: [2]string{id1, id2},
				TTC:      round3(minTTC),
			})

			if minTTC < view.TTC {
				pair := [2]string{id1, id2}
				view = RiskView{Risk: true, TTC: round3(minTTC), Action: action, Pair: &pair}
			}
		}
	}
	return view, zones
}

// riskRadius shrinks as TTC shrinks: the more imminent the conflict, the
// tighter the visualized zone around the intersection center.
func riskRadius(ttcSeconds float64) float64 {
	r := 80 - ttcSeconds*20
	if r < 20 {
		r = 20
	}
	return r
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
