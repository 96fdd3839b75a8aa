package audio

import (
	"math"
	"time"
)

const (
	ToneFrequency = 440.0
	ToneAmplitude = 16000
)

// GenerateSineWave produces a sine wave at the given frequency and duration
// as 8kHz mono int16 PCM samples.
func GenerateSineWave(durationSec, frequency float64) []int16 {
	numSamples := int(durationSec * SampleRate)
	samples := make([]int16, numSamples)
	for i := range samples {
		t := float64(i) / SampleRate
		samples[i] = int16(ToneAmplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return samples
}

// Tone returns d worth of a sine wave encoded as s16le bytes.
func Tone(d time.Duration, frequency float64) []byte {
	return Int16ToBytes(GenerateSineWave(d.Seconds(), frequency))
}
