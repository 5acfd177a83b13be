package engine

// safety is the share of the bandwidth estimate a level may use.
const (
	safety = 0.8
	alpha  = 0.3
)

// estimator is an exponentially weighted moving average of throughput samples.
type estimator struct {
	bps float64
}

func (e *estimator) sample(bps float64) {
	if bps <= 0 {
		return
	}
	if e.bps <= 0 {
		e.bps = bps
		return
	}
	e.bps = alpha*bps + (1-alpha)*e.bps
}

// pick returns the highest-bitrate level that fits in the estimate, or the
// lowest-bitrate level when none fits. Levels with unknown bitrate count as 0.
func pick(levels []Level, bps float64) int {
	if len(levels) == 0 {
		return AutoLevel
	}

	budget := bps * safety
	best, lowest := -1, 0
	for i, l := range levels {
		if l.Bitrate < levels[lowest].Bitrate {
			lowest = i
		}
		if float64(l.Bitrate) <= budget && (best < 0 || l.Bitrate > levels[best].Bitrate) {
			best = i
		}
	}
	if best < 0 {
		return lowest
	}
	return best
}
