package media

import "github.com/troikatech/collections-agent/pkg/audio"

// VAD is an RMS energy voice detector with hysteresis so a single loud or
// quiet frame does not flip its state.
type VAD struct {
	speechThreshold  float64
	silenceThreshold float64
	speechFrames     int
	silenceFrames    int
	inSpeech         bool
	speechCount      int
	silenceCount     int
}

// NewVAD returns a detector for 20ms frames. threshold is the RMS level,
// in 16-bit sample units, at which speech starts.
func NewVAD(threshold float64) *VAD {
	if threshold <= 0 {
		threshold = 500
	}
	return &VAD{
		speechThreshold:  threshold,
		silenceThreshold: threshold * 0.6,
		speechFrames:     2,
		silenceFrames:    5,
	}
}

// IsSpeech feeds one frame and returns whether the caller is speaking
func (v *VAD) IsSpeech(frame []byte) bool {
	level := audio.RMS(frame)

	if v.inSpeech {
		if level < v.silenceThreshold {
			v.silenceCount++
			if v.silenceCount >= v.silenceFrames {
				v.inSpeech = false
				v.silenceCount = 0
			}
		} else {
			v.silenceCount = 0
		}
	} else {
		if level >= v.speechThreshold {
			v.speechCount++
			if v.speechCount >= v.speechFrames {
				v.inSpeech = true
				v.speechCount = 0
			}
		} else {
			v.speechCount = 0
		}
	}

	return v.inSpeech
}

// Reset clears internal state
func (v *VAD) Reset() {
	v.inSpeech = false
	v.speechCount = 0
	v.silenceCount = 0
}
