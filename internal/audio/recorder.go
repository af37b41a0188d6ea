package audio

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	// SampleRate is what the transcriber expects: mono 16 kHz.
	SampleRate = 16000

	frameSize        = 320 // 20ms
	frameMillis      = 20
	silenceThreshRMS = 0.015
	silenceDuration  = 600 * time.Millisecond
	maxUtterance     = 10 * time.Second
	preRollFrames    = 15 // 300ms kept before speech onset
)

// Recorder captures one utterance at a time from the default input device.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record listens until the speaker falls silent (or maxUtterance is hit)
// and returns mono 16 kHz float32 PCM. A short pre-roll ring keeps the
// audio from just before speech onset so the first syllable survives.
// Cancelling ctx aborts the capture and returns ctx.Err().
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)
	out := make([]float32, 0, SampleRate*3)
	preRoll := NewRing(preRollFrames * frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking      bool
		silenceFrames int
	)

	maxFrames := int(maxUtterance/time.Millisecond) / frameMillis

	for i := 0; i < maxFrames; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}

		rms := frameRMS(buf)

		if rms > silenceThreshRMS {
			if !speaking {
				speaking = true
				out = append(out, preRoll.Read()...)
			}
			silenceFrames = 0
			out = append(out, buf...)
			continue
		}

		if !speaking {
			preRoll.Add(buf)
			continue
		}

		silenceFrames++
		if time.Duration(silenceFrames)*frameMillis*time.Millisecond >= silenceDuration {
			break
		}
		out = append(out, buf...)
	}

	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
