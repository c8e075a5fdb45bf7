package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

// vehicleSchemaJSON encodes the custom-builder vehicle spec validation rules
// (spec.md §6): id required, direction/intent/priority enumerations,
// speed_multiplier range. Defaults (intent, priority, speed_multiplier,
// v2x_enabled) are applied after validation, not by the schema.
const vehicleSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "direction"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"direction": {"type": "string", "enum": ["N", "S", "E", "V"]},
		"intent": {"type": "string", "enum": ["straight", "left", "right"]},
		"priority": {"type": "string", "enum": ["normal", "emergency"]},
		"speed_multiplier": {"type": "number", "minimum": 0.2, "maximum": 3.0},
		"v2x_enabled": {"type": "boolean"},
		"no_stop": {"type": "boolean"}
	},
	"additionalProperties": false
}`

var vehicleSchema = compileVehicleSchema()

func compileVehicleSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("vehicle.json", strings.NewReader(vehicleSchemaJSON)); err != nil {
		panic(fmt.Errorf("scenario: compiling vehicle schema: %w", err))
	}
	schema, err := compiler.Compile("vehicle.json")
	if err != nil {
		panic(fmt.Errorf("scenario: compiling vehicle schema: %w", err))
	}
	return schema
}

// rawVehicle mirrors the wire shape of a custom-builder vehicle spec, with
// pointer fields so the builder can tell an absent field from its zero value
// when applying defaults.
type rawVehicle struct {
	ID              string   `json:"id"`
	Direction       string   `json:"direction"`
	Intent          *string  `json:"intent"`
	Priority        *string  `json:"priority"`
	SpeedMultiplier *float64 `json:"speed_multiplier"`
	V2XEnabled      *bool    `json:"v2x_enabled"`
	NoStop          *bool    `json:"no_stop"`
}

func (r rawVehicle) toDef() VehicleDef {
	def := VehicleDef{
		ID:         r.ID,
		Direction:  vehicle.Direction(r.Direction),
		Intent:     vehicle.Straight,
		Priority:   vehicle.NormalPriority,
		V2XEnabled: true,
	}
	if r.Intent != nil {
		def.Intent = vehicle.Intent(*r.Intent)
	}
	if r.Priority != nil {
		def.Priority = vehicle.Priority(*r.Priority)
	}
	def.SpeedMultiplier = 1.0
	if r.SpeedMultiplier != nil {
		def.SpeedMultiplier = *r.SpeedMultiplier
	}
	if r.V2XEnabled != nil {
		def.V2XEnabled = *r.V2XEnabled
	}
	if r.NoStop != nil {
		def.NoStop = *r.NoStop
	}
	return def
}

// Builder holds the mutable custom-scenario vehicle list (spec.md §4.8,
// §6): add/update/remove/clear operations, validated against
// vehicleSchemaJSON, plus a standalone custom-signal flag.
type Builder struct {
	mu       sync.Mutex
	vehicles []VehicleDef
	signal   bool
}

// NewBuilder returns an empty custom-scenario builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func validate(raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := vehicleSchema.Validate(payload); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// AddVehicle validates and appends a new vehicle spec. raw is the vehicle
// spec as JSON (the external API's wire format).
func (b *Builder) AddVehicle(raw []byte) (VehicleDef, error) {
	if err := validate(raw); err != nil {
		return VehicleDef{}, err
	}
	var rv rawVehicle
	if err := json.Unmarshal(raw, &rv); err != nil {
		return VehicleDef{}, fmt.Errorf("decoding vehicle spec: %w", err)
	}
	def := rv.toDef()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.vehicles {
		if existing.ID == def.ID {
			return VehicleDef{}, fmt.Errorf("vehicle id %q already exists", def.ID)
		}
	}
	def.QueueIndex = b.queueIndexFor(def.Direction)
	b.vehicles = append(b.vehicles, def)
	return def, nil
}

// UpdateVehicle merges partial (a partial JSON object) onto the existing
// vehicle with the given id, re-validates the merged document, and replaces
// the stored definition.
func (b *Builder) UpdateVehicle(id string, partial []byte) (VehicleDef, error) {
	var patch map[string]any
	if err := json.Unmarshal(partial, &patch); err != nil {
		return VehicleDef{}, fmt.Errorf("invalid JSON: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.indexOf(id)
	if idx < 0 {
		return VehicleDef{}, fmt.Errorf("unknown vehicle id %q", id)
	}

	merged, err := mergeDef(b.vehicles[idx], patch)
	if err != nil {
		return VehicleDef{}, err
	}
	if err := validate(merged); err != nil {
		return VehicleDef{}, err
	}

	var rv rawVehicle
	if err := json.Unmarshal(merged, &rv); err != nil {
		return VehicleDef{}, fmt.Errorf("decoding merged vehicle spec: %w", err)
	}
	def := rv.toDef()
	def.QueueIndex = b.vehicles[idx].QueueIndex
	b.vehicles[idx] = def
	return def, nil
}

// mergeDef serializes the existing definition, overlays patch fields on top,
// and re-marshals the result for re-validation.
func mergeDef(existing VehicleDef, patch map[string]any) ([]byte, error) {
	base, err := json.Marshal(map[string]any{
		"id":               existing.ID,
		"direction":        string(existing.Direction),
		"intent":           string(existing.Intent),
		"priority":         string(existing.Priority),
		"speed_multiplier": existing.SpeedMultiplier,
		"v2x_enabled":      existing.V2XEnabled,
		"no_stop":          existing.NoStop,
	})
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(base, &doc); err != nil {
		return nil, err
	}
	for k, v := range patch {
		doc[k] = v
	}
	return json.Marshal(doc)
}

// RemoveVehicle deletes the vehicle with the given id, if present.
func (b *Builder) RemoveVehicle(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.indexOf(id)
	if idx < 0 {
		return false
	}
	b.vehicles = append(b.vehicles[:idx], b.vehicles[idx+1:]...)
	return true
}

// ClearCustom empties the builder's vehicle list.
func (b *Builder) ClearCustom() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vehicles = nil
}

// SetCustomSignal sets whether the custom scenario runs with a signal
// controller.
func (b *Builder) SetCustomSignal(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signal = on
}

// GetCustom returns a snapshot of the current builder state as a Scenario.
func (b *Builder) GetCustom() Scenario {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]VehicleDef, len(b.vehicles))
	copy(out, b.vehicles)
	return Scenario{Name: "custom", Description: "user-defined scenario", HasSignal: b.signal, Vehicles: out}
}

func (b *Builder) indexOf(id string) int {
	for i, v := range b.vehicles {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// queueIndexFor counts existing vehicles sharing a direction so multiple
// vehicles on the same approach spawn staggered (spec.md §4.8).
func (b *Builder) queueIndexFor(d vehicle.Direction) int {
	n := 0
	for _, v := range b.vehicles {
		if v.Direction == d {
			n++
		}
	}
	return n
}
