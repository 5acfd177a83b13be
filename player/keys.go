package player

import "slices"

const (
	seekStep   = 10
	volumeStep = 0.1
)

// keyCommand maps a keypress to the command it stands for.
func keyCommand(name string, s Session) (Event, bool) {
	switch name {
	case " ", "space", "k":
		return Toggle{}, true
	case "j", "left":
		return SeekBy{Delta: -seekStep}, true
	case "l", "right":
		return SeekBy{Delta: seekStep}, true
	case "up":
		return AdjustVolume{Delta: volumeStep}, true
	case "down":
		return AdjustVolume{Delta: -volumeStep}, true
	case "m":
		return ToggleMute{}, true
	case "f":
		return ToggleFullscreen{}, true
	case "<":
		return StepRate{Steps: -1}, true
	case ">":
		return StepRate{Steps: 1}, true
	}

	if len(name) == 1 && name[0] >= '0' && name[0] <= '9' {
		digit := float64(name[0] - '0')
		return SeekTo{Time: s.Duration * digit / 10}, true
	}

	return nil, false
}

// stepRate moves steps positions through Rates from the rate closest to
// current, stopping at either end.
func stepRate(current float64, steps int) float64 {
	i := slices.IndexFunc(Rates, func(r float64) bool { return r >= current })
	if i < 0 {
		i = len(Rates) - 1
	}
	return Rates[min(max(i+steps, 0), len(Rates)-1)]
}
