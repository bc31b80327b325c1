package radio

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wlamlab/wlam_node/internal/model"
)

// Binder holds the node's current radio parameters and stamps outgoing
// packets with them. The parameter set is swapped atomically as a whole so a
// packet can never observe a half-updated configuration.
type Binder struct {
	params atomic.Pointer[model.RadioParameters]
	log    *zap.Logger
}

// NewBinder creates a binder; params may be nil for an unconfigured node.
func NewBinder(params *model.RadioParameters, log *zap.Logger) *Binder {
	b := &Binder{log: log}
	if params != nil {
		p := *params
		b.params.Store(&p)
	}
	return b
}

// Reconfigure replaces the whole parameter set.
func (b *Binder) Reconfigure(params model.RadioParameters) {
	b.params.Store(&params)
}

// Params returns the current parameter set, or nil when unbound.
func (b *Binder) Params() *model.RadioParameters {
	return b.params.Load()
}

// Stamp attaches the current transmission parameters to the packet, with
// power converted from dBm to linear mW. With no radio bound the packet is
// left unstamped: it is still produced locally but cannot be transmitted
// correctly, so this is logged as a configuration issue, not treated as
// fatal.
func (b *Binder) Stamp(pkt *model.UplinkPacket) {
	p := b.params.Load()
	if p == nil {
		b.log.Warn("no radio bound, packet left unstamped",
			zap.String("packet_id", pkt.PacketID))
		return
	}
	pkt.Radio = &model.RadioStamp{
		SpreadingFactor:   p.SpreadingFactor,
		BandwidthHz:       p.BandwidthHz,
		CenterFrequencyHz: p.CenterFrequencyHz,
		PowerMw:           model.MilliwattsFromDbm(p.TxPowerDbm),
		CodingRate:        p.CodingRate,
	}
}
