package model

import (
	"math"
	"strings"
	"time"
)

// SensorKind identifies one of the node's fixed sensing slots.
type SensorKind int

const (
	Temperature SensorKind = iota
	Gas
	Humidity
	Counter
	KindCount
)

func (k SensorKind) String() string {
	switch k {
	case Temperature:
		return "temperature"
	case Gas:
		return "gas"
	case Humidity:
		return "humidity"
	case Counter:
		return "counter"
	default:
		return "unknown"
	}
}

// IsCounter reports whether the kind carries a monotonic count instead of a
// sampled float value.
func (k SensorKind) IsCounter() bool { return k == Counter }

// Bitmap marks which sensor kinds contributed values to an aggregated
// reading. Bit order follows the SensorKind order.
type Bitmap uint8

const (
	BitTemperature Bitmap = 1 << Temperature
	BitGas         Bitmap = 1 << Gas
	BitHumidity    Bitmap = 1 << Humidity
	BitCounter     Bitmap = 1 << Counter
)

// Bit returns the bitmap flag for a kind.
func Bit(k SensorKind) Bitmap { return 1 << uint(k) }

func (b Bitmap) Has(k SensorKind) bool { return b&Bit(k) != 0 }

func (b Bitmap) Empty() bool { return b == 0 }

func (b Bitmap) String() string {
	if b == 0 {
		return "none"
	}
	parts := make([]string, 0, int(KindCount))
	for k := Temperature; k < KindCount; k++ {
		if b.Has(k) {
			parts = append(parts, k.String())
		}
	}
	return strings.Join(parts, "|")
}

// SimTime is a simulated timestamp, expressed as elapsed time since the
// start of the run. It is unrelated to wall-clock time.
type SimTime = time.Duration

// Never is the due-time of a disabled sensor: no finite wake will ever
// reach it.
const Never SimTime = math.MaxInt64

// HourOfDay maps a simulated timestamp onto the diurnal cycle used by the
// environment model.
func HourOfDay(t SimTime) float64 {
	return t.Hours()
}
