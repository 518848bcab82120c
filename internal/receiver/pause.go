package receiver

import (
	"context"
	"time"

	"github.com/EOSTribe/eos-chronicle/logger"
)

// checkPause pacifies the reader when the consumer falls behind: an
// explicit slowdown request, too many unacknowledged blocks, or a deep
// reactor queue all defer the next read. The wait starts at 100ms and
// doubles up to 8s; waits of 2s and longer are announced on the
// receiver_pauses channel. Returns true when reading may continue.
func (r *Receiver) checkPause(ctx context.Context) bool {
	paused := r.slowdownRequested ||
		(r.exporterWillAck && r.head-r.exporterAckedBlock >= r.exporterMaxUnconfirmed) ||
		uint32(r.reactor.Len()) > r.cfg.MaxQueueSize

	if !paused {
		return true
	}

	r.slowdownRequested = false

	if r.pauseTimeMsec == 0 {
		r.pauseTimeMsec = 100
	} else if r.pauseTimeMsec < 8000 {
		r.pauseTimeMsec *= 2
		if r.pauseTimeMsec > 8000 {
			r.pauseTimeMsec = 8000
		}
	}

	if r.pauseTimeMsec >= 2000 {
		r.channels.ReceiverPauses.Publish(channelPriority, &ReceiverPauseEvent{
			Head:         r.head,
			Acknowledged: r.exporterAckedBlock,
		})
		logger.Printf("receiver", "Pausing the reader")
	}
	metricPaused.Set(1)
	metricQueueDepth.Set(float64(r.reactor.Len()))
	r.reactor.DrainPending()

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(r.pauseTimeMsec) * time.Millisecond):
	}
	metricPaused.Set(0)
	return false
}
