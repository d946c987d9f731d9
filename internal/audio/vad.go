package audio

import "math"

// Speech-gate defaults. 25 ms windows at 16 kHz; the RMS threshold sits well
// above electrical noise but below quiet speech.
const (
	vadWindowSamples = 400
	vadRMSThreshold  = 0.01
)

// HasSpeech reports whether any window of the clip carries enough energy to
// plausibly contain speech. It is a cheap gate to skip model invocations on
// silent uploads, not a full voice-activity detector.
func HasSpeech(samples []float32) bool {
	if len(samples) == 0 {
		return false
	}
	for off := 0; off < len(samples); off += vadWindowSamples {
		end := off + vadWindowSamples
		if end > len(samples) {
			end = len(samples)
		}
		if windowRMS(samples[off:end]) >= vadRMSThreshold {
			return true
		}
	}
	return false
}

func windowRMS(w []float32) float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, s := range w {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(w)))
}
