package s4

// Size describes how many ASCII-coded digits a memory register occupies on
// the wire: single = 1 byte (2 digits), double = 2 bytes (4 digits), triple =
// 3 bytes (6 digits).
type Size int

const (
	SizeSingle Size = 1
	SizeDouble Size = 2
	SizeTriple Size = 3
)

// digits returns the number of ASCII characters the register's value is
// encoded in (2 hex/decimal digits per byte).
func (s Size) digits() int { return int(s) * 2 }

// requestPrefix is the IR command prefix for this size (IRS/IRD/IRT).
func (s Size) requestPrefix() string {
	switch s {
	case SizeSingle:
		return "IRS"
	case SizeDouble:
		return "IRD"
	case SizeTriple:
		return "IRT"
	default:
		return ""
	}
}

// responsePrefix is the ID response prefix for this size (IDS/IDD/IDT).
func (s Size) responsePrefix() string {
	switch s {
	case SizeSingle:
		return "IDS"
	case SizeDouble:
		return "IDD"
	case SizeTriple:
		return "IDT"
	default:
		return ""
	}
}

// Endian is the byte order a register's multi-byte value is transmitted in.
// Per the vendor protocol doc this is inverted from what's documented: the
// directly-measured ("primary") registers are little-endian on the wire and
// the computed ("maths") registers are big-endian.
type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

// Frequency selects which polling loop requests a register.
type Frequency int

const (
	FreqHigh Frequency = iota
	FreqLow
)

// Category groups registers so the scheduler can be told to stop/start
// polling a whole family at once (e.g. "workout" legs only matter while a
// workout is being configured).
type Category string

const (
	CategoryRowing      Category = "rowing"
	CategoryState       Category = "state"
	CategoryWorkout     Category = "workout"
	CategoryWorkoutStat Category = "workout_stat"
	CategoryZone        Category = "zone"
	CategoryIntensity   Category = "intensity"
	CategoryDistance    Category = "distance"
	CategoryDuration    Category = "duration"
	CategoryProgram     Category = "program"
	CategoryHeartRate   Category = "heart_rate"
	CategoryStrokeRate  Category = "stroke_rate"
	CategoryMisc        Category = "miscellaneous"
	CategoryDisplay     Category = "display"
)

// MemoryField is the static description of one S4 memory register, as
// shipped in the vendor's MEMORY_MAP.
type MemoryField struct {
	Type                string
	Size                Size
	Base                int // 10 or 16
	Endian              Endian
	Frequency           Frequency
	Category            Category
	ExcludeFromPollLoop bool
}

// MemoryMap is keyed by the three-hex-digit register address (e.g. "055").
var MemoryMap = map[string]MemoryField{
	// Screen / state
	"00D": {Type: "screen_mode", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryState},
	"00E": {Type: "screen_sub_mode", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryState},
	"00F": {Type: "intervals_remaining", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryState},

	// Flags
	"03E": {Type: "workout_flags", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryState},
	"03F": {Type: "function_flags", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryState},
	"041": {Type: "intensity2_disp_flags", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryIntensity},
	"042": {Type: "distance1_disp_flags", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryDistance},
	"044": {Type: "program_disp_flags", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryProgram, ExcludeFromPollLoop: true},
	"047": {Type: "misc_disp_flags", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryState},

	// Fundamental rowing data
	"055": {Type: "total_distance", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},
	"054": {Type: "total_distance_dec", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},
	"088": {Type: "watts", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},
	"08A": {Type: "total_calories", Size: SizeTriple, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},

	// Zone boundary values
	"090": {Type: "zone_hr_upper", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryZone},
	"091": {Type: "zone_hr_lower", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryZone},
	"092": {Type: "zone_int_mps_upper", Size: SizeDouble, Base: 16, Endian: LittleEndian, Frequency: FreqLow, Category: CategoryZone},
	"094": {Type: "zone_int_mps_lower", Size: SizeDouble, Base: 16, Endian: LittleEndian, Frequency: FreqLow, Category: CategoryZone},
	"096": {Type: "zone_int_mph_upper", Size: SizeDouble, Base: 16, Endian: LittleEndian, Frequency: FreqLow, Category: CategoryZone},
	"098": {Type: "zone_int_mph_lower", Size: SizeDouble, Base: 16, Endian: LittleEndian, Frequency: FreqLow, Category: CategoryZone},
	"09A": {Type: "zone_int_500m_upper", Size: SizeDouble, Base: 16, Endian: LittleEndian, Frequency: FreqLow, Category: CategoryZone},
	"09C": {Type: "zone_int_500m_lower", Size: SizeDouble, Base: 16, Endian: LittleEndian, Frequency: FreqLow, Category: CategoryZone},
	"09E": {Type: "zone_int_2km_upper", Size: SizeDouble, Base: 16, Endian: LittleEndian, Frequency: FreqLow, Category: CategoryZone},
	"0A0": {Type: "zone_int_2km_lower", Size: SizeDouble, Base: 16, Endian: LittleEndian, Frequency: FreqLow, Category: CategoryZone},
	"0A2": {Type: "zone_sr_upper", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryZone},
	"0A3": {Type: "zone_sr_lower", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryZone},

	// Tank
	"0A9": {Type: "tank_volume", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryMisc, ExcludeFromPollLoop: false},

	// Stroke counters
	"140": {Type: "stroke_count", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},
	"142": {Type: "avg_time_stroke_whole", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},
	"143": {Type: "avg_time_stroke_pull", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},

	// Speed
	"14A": {Type: "avg_distance_cmps", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},

	// Values used for zone maths / direct reporting
	"1A0": {Type: "heart_rate", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},
	"1A5": {Type: "500m_pace", Size: SizeDouble, Base: 16, Endian: LittleEndian, Frequency: FreqHigh, Category: CategoryRowing, ExcludeFromPollLoop: true},
	"1A9": {Type: "stroke_rate", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing, ExcludeFromPollLoop: true},

	// Clock display — requested most-significant first to minimise the
	// chance of a tick landing between component reads.
	"1E3": {Type: "display_hr", Size: SizeSingle, Base: 10, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},
	"1E2": {Type: "display_min", Size: SizeSingle, Base: 10, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},
	"1E1": {Type: "display_sec", Size: SizeSingle, Base: 10, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},
	"1E0": {Type: "display_sec_dec", Size: SizeSingle, Base: 10, Endian: BigEndian, Frequency: FreqHigh, Category: CategoryRowing},

	// Workout totals
	"1E8": {Type: "workout_total_time", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkoutStat},
	"1EA": {Type: "workout_total_metres", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkoutStat},
	"1EC": {Type: "workout_total_strokes", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkoutStat},

	// Interval legs
	"1B0": {Type: "workout_work1", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1B2": {Type: "workout_rest1", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1B4": {Type: "workout_work2", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1B6": {Type: "workout_rest2", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1B8": {Type: "workout_work3", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1BA": {Type: "workout_rest3", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1BC": {Type: "workout_work4", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1BE": {Type: "workout_rest4", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1C0": {Type: "workout_work5", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1C2": {Type: "workout_rest5", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1C4": {Type: "workout_work6", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1C6": {Type: "workout_rest6", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1C8": {Type: "workout_work7", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1CA": {Type: "workout_rest7", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1CC": {Type: "workout_work8", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1CE": {Type: "workout_rest8", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
	"1D0": {Type: "workout_work9", Size: SizeDouble, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},

	// Interval count
	"1D9": {Type: "workout_intervals", Size: SizeSingle, Base: 16, Endian: BigEndian, Frequency: FreqLow, Category: CategoryWorkout},
}

// memoryMapOrder fixes the declaration order of the MEMORY_MAP table. Go map
// iteration order is randomised, but the scheduler's polling order is part
// of the protocol contract: the clock registers in particular must be
// requested most-significant-first (1E3, 1E2, 1E1, 1E0) to minimise the
// chance a tick lands between component reads, so the scheduler walks this
// slice rather than ranging over MemoryMap directly.
var memoryMapOrder = []string{
	"00D", "00E", "00F",
	"03E", "03F", "041", "042", "044", "047",
	"055", "054", "088", "08A",
	"090", "091", "092", "094", "096", "098", "09A", "09C", "09E", "0A0", "0A2", "0A3",
	"0A9",
	"140", "142", "143",
	"14A",
	"1A0", "1A5", "1A9",
	"1E3", "1E2", "1E1", "1E0",
	"1E8", "1EA", "1EC",
	"1B0", "1B2", "1B4", "1B6", "1B8", "1BA", "1BC", "1BE", "1C0", "1C2", "1C4", "1C6", "1C8", "1CA", "1CC", "1CE", "1D0",
	"1D9",
}

// OrderedAddresses returns every MEMORY_MAP address in declaration order.
func OrderedAddresses() []string {
	out := make([]string, len(memoryMapOrder))
	copy(out, memoryMapOrder)
	return out
}

// addressForType is a reverse lookup built once; used by on-demand requests
// (e.g. a future control surface asking for "tank_volume" directly).
var addressForType map[string]string

func init() {
	addressForType = make(map[string]string, len(MemoryMap))
	for addr, f := range MemoryMap {
		addressForType[f.Type] = addr
	}
	if len(memoryMapOrder) != len(MemoryMap) {
		panic("s4: memoryMapOrder and MemoryMap have diverged")
	}
	for _, addr := range memoryMapOrder {
		if _, ok := MemoryMap[addr]; !ok {
			panic("s4: memoryMapOrder references unknown address " + addr)
		}
	}
}

// AddressOf returns the MEMORY_MAP address for a given field type, and
// whether it was found.
func AddressOf(fieldType string) (string, bool) {
	addr, ok := addressForType[fieldType]
	return addr, ok
}
