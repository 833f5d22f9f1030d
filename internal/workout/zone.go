package workout

import (
	"fmt"

	"github.com/elp3dr/wrowfusion/internal/s4"
)

// ZoneType classifies what quantity a configured training zone bounds.
type ZoneType int

const (
	ZoneTypeNone ZoneType = iota
	ZoneTypeHeartRate
	ZoneTypeStrokeRate
	ZoneTypeIntensity
)

func (t ZoneType) String() string {
	switch t {
	case ZoneTypeHeartRate:
		return "heart_rate"
	case ZoneTypeStrokeRate:
		return "stroke_rate"
	case ZoneTypeIntensity:
		return "intensity"
	default:
		return "none"
	}
}

// zoneQuantity names one of the six bound-pair registers the S4 reports,
// independent of which one is currently the "active" bound for the
// configured ZoneType/Units.
type zoneQuantity string

const (
	zoneQtyHeartRate  zoneQuantity = "bpm"
	zoneQtyStrokeRate zoneQuantity = "spm"
	zoneQtyMPS        zoneQuantity = "mps"
	zoneQtyMPH        zoneQuantity = "mph"
	zoneQty500m       zoneQuantity = "500m_pace"
	zoneQty2km        zoneQuantity = "2km_pace"
)

// zoneFieldQuantity maps a decoded MEMORY_MAP field name to the bound-pair
// quantity and bound half (true = upper) it belongs to.
func zoneFieldQuantity(field string) (qty zoneQuantity, upper bool, ok bool) {
	switch field {
	case "zone_hr_upper":
		return zoneQtyHeartRate, true, true
	case "zone_hr_lower":
		return zoneQtyHeartRate, false, true
	case "zone_sr_upper":
		return zoneQtyStrokeRate, true, true
	case "zone_sr_lower":
		return zoneQtyStrokeRate, false, true
	case "zone_int_mps_upper":
		return zoneQtyMPS, true, true
	case "zone_int_mps_lower":
		return zoneQtyMPS, false, true
	case "zone_int_mph_upper":
		return zoneQtyMPH, true, true
	case "zone_int_mph_lower":
		return zoneQtyMPH, false, true
	case "zone_int_500m_upper":
		return zoneQty500m, true, true
	case "zone_int_500m_lower":
		return zoneQty500m, false, true
	case "zone_int_2km_upper":
		return zoneQty2km, true, true
	case "zone_int_2km_lower":
		return zoneQty2km, false, true
	default:
		return "", false, false
	}
}

// intensityUnitQuantity maps the selected IntensityUnit to the bound-pair
// quantity that is "active" for an intensity zone.
func intensityUnitQuantity(u IntensityUnit) (zoneQuantity, bool) {
	switch u {
	case IntensityUnitMPS:
		return zoneQtyMPS, true
	case IntensityUnitMPH:
		return zoneQtyMPH, true
	case IntensityUnitSecs500m:
		return zoneQty500m, true
	case IntensityUnitSecs2km:
		return zoneQty2km, true
	default:
		// Watts and cal/hr zones aren't among the dedicated bound
		// registers the S4 exposes; treated as never-valid.
		return "", false
	}
}

// zoneBound is one upper/lower register pair as read so far.
type zoneBound struct {
	upper, lower         int64
	haveUpper, haveLower bool
}

// ZoneDefinition is the reassembled description of a configured training
// zone (ZoneBuilder.IsValid reports whether it is complete): its bounding
// quantity, the unit those bounds are
// expressed in (for intensity zones), and the resolved upper/lower values
// for whichever quantity Type/Units currently select. The S4 reports all
// six bound-pair registers regardless of which one is active; Bounds keeps
// all of them so a config UI can offer to switch zone kind without
// re-reading the device.
type ZoneDefinition struct {
	Type       ZoneType
	Units      IntensityUnit
	UpperBound int64
	LowerBound int64

	Bounds map[string]ZoneBound
}

// ZoneBound is the exported, read-only view of one quantity's bound pair.
type ZoneBound struct {
	Upper, Lower         int64
	HaveUpper, HaveLower bool
}

// ZoneBuilder accumulates zone flag changes and boundary register reads.
type ZoneBuilder struct {
	flags     Mode
	flagsSeen bool
	typ       ZoneType
	units     IntensityUnit
	bounds    map[zoneQuantity]*zoneBound

	lastMisc uint16
	haveMisc bool
}

// NewZoneBuilder returns an empty ZoneBuilder.
func NewZoneBuilder() *ZoneBuilder {
	return &ZoneBuilder{bounds: make(map[zoneQuantity]*zoneBound)}
}

// UpdateIfFlagsChanged re-derives zone state from a workout_flags read (the
// same register the workout Builder reads: it packs both the workout-type
// bits and the zone-kind bits), resetting accumulated bounds only when a
// zone-kind bit actually changed. It reports whether a change was applied.
func (z *ZoneBuilder) UpdateIfFlagsChanged(raw uint16) bool {
	next := Mode(raw)
	if z.flagsSeen && ChangedZoneBits(z.flags, next) == 0 {
		return false
	}
	z.flags = next
	z.flagsSeen = true
	z.bounds = make(map[zoneQuantity]*zoneBound)
	z.units = 0
	z.typ = next.ZoneKind()
	return true
}

// UpdateFromEvent folds one decoded memory_read Event into the
// in-progress ZoneDefinition. A misc_disp_flags change is the S4's proxy
// for a user editing zone bounds on its own console without flipping
// workout_flags: while a zone kind is active, it discards the accumulated
// bounds so they get re-read. The return value reports whether that
// happened, so the caller can re-enable polling of the bound registers.
func (z *ZoneBuilder) UpdateFromEvent(ev s4.Event) (repoll bool) {
	if ev.Type != s4.EventMemoryRead {
		return false
	}

	switch ev.Field {
	case "intensity2_disp_flags":
		if unit, ok := SingleIntensityUnit(uint8(ev.Value)); ok {
			z.units = unit
		}
		return false
	case "misc_disp_flags":
		v := uint16(ev.Value)
		changed := z.haveMisc && v != z.lastMisc
		z.lastMisc, z.haveMisc = v, true
		if changed && z.typ != ZoneTypeNone {
			z.bounds = make(map[zoneQuantity]*zoneBound)
			return true
		}
		return false
	}

	qty, upper, ok := zoneFieldQuantity(ev.Field)
	if !ok {
		return false
	}

	b, exists := z.bounds[qty]
	if !exists {
		b = &zoneBound{}
		z.bounds[qty] = b
	}
	if upper {
		b.upper, b.haveUpper = ev.Value, true
	} else {
		b.lower, b.haveLower = ev.Value, true
	}
	return false
}

// activeQuantity returns which of the six bound-pair quantities currently
// bounds the configured zone, per Type/Units.
func (z *ZoneBuilder) activeQuantity() (zoneQuantity, bool) {
	switch z.typ {
	case ZoneTypeHeartRate:
		return zoneQtyHeartRate, true
	case ZoneTypeStrokeRate:
		return zoneQtyStrokeRate, true
	case ZoneTypeIntensity:
		return intensityUnitQuantity(z.units)
	default:
		return "", false
	}
}

// IsValid reports whether the active zone's bound pair has been populated
// and is ordered sensibly. An intensity zone additionally requires a
// resolved Units selection, since without it there is no way to know which
// of the four intensity bound-pair registers applies.
func (z *ZoneBuilder) IsValid() (bool, error) {
	if z.typ == ZoneTypeNone {
		return true, nil
	}
	qty, ok := z.activeQuantity()
	if !ok {
		return false, fmt.Errorf("zone: kind %v has no resolved bound quantity (units=%v)", z.typ, z.units)
	}
	b, exists := z.bounds[qty]
	if !exists || !b.haveUpper || !b.haveLower {
		return false, fmt.Errorf("zone: %s bounds incomplete", qty)
	}
	if b.lower > b.upper {
		return false, fmt.Errorf("zone: %s lower bound %d exceeds upper bound %d", qty, b.lower, b.upper)
	}
	return true, nil
}

// Definition returns the builder's current state, with UpperBound/
// LowerBound resolved from whichever quantity is active.
func (z *ZoneBuilder) Definition() ZoneDefinition {
	d := ZoneDefinition{
		Type:   z.typ,
		Units:  z.units,
		Bounds: make(map[string]ZoneBound, len(z.bounds)),
	}
	for qty, b := range z.bounds {
		d.Bounds[string(qty)] = ZoneBound{
			Upper: b.upper, Lower: b.lower,
			HaveUpper: b.haveUpper, HaveLower: b.haveLower,
		}
	}
	if qty, ok := z.activeQuantity(); ok {
		if b, exists := z.bounds[qty]; exists {
			d.UpperBound = b.upper
			d.LowerBound = b.lower
		}
	}
	return d
}
