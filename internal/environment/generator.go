package environment

import (
	"math"
	"math/rand"

	"github.com/wlamlab/wlam_node/internal/model"
)

// Noise sigmas of the synthetic environment, per quantity.
const (
	sigmaTemperature = 0.2
	sigmaHumidity    = 0.5
	sigmaGas         = 0.1
)

// Params are the base/amplitude pairs of the diurnal model.
type Params struct {
	BaseTemperature      float64
	AmplitudeTemperature float64
	BaseHumidity         float64
	AmplitudeHumidity    float64
	BaseGas              float64
	AmplitudeGas         float64
}

// Generator maps simulated time to synthetic readings. It keeps no state
// beyond its parameters; the randomness source is injected so a fixed seed
// reproduces a run exactly.
type Generator struct {
	p   Params
	rng *rand.Rand
}

func New(p Params, rng *rand.Rand) *Generator {
	return &Generator{p: p, rng: rng}
}

// Temperature follows a 24-hour sinusoid around the base value.
func (g *Generator) Temperature(at model.SimTime) float64 {
	hrs := model.HourOfDay(at)
	return g.p.BaseTemperature + g.p.AmplitudeTemperature*math.Sin(2*math.Pi*hrs/24) + g.rng.NormFloat64()*sigmaTemperature
}

// Humidity lags temperature by a 45-degree phase shift.
func (g *Generator) Humidity(at model.SimTime) float64 {
	hrs := model.HourOfDay(at)
	return g.p.BaseHumidity + g.p.AmplitudeHumidity*math.Sin(2*math.Pi*hrs/24+math.Pi/4) + g.rng.NormFloat64()*sigmaHumidity
}

// Gas uses a 12-hour period with a strictly non-negative envelope.
func (g *Generator) Gas(at model.SimTime) float64 {
	hrs := model.HourOfDay(at)
	return g.p.BaseGas + g.p.AmplitudeGas*(0.5+0.5*math.Sin(2*math.Pi*hrs/12)) + g.rng.NormFloat64()*sigmaGas
}
