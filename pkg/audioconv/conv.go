package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// targetRate is the transcriber's input rate.
const targetRate = 16000

// Options limits a decode run.
type Options struct {
	MaxSamples int // 0 = unlimited
}

// DecodeFile decodes a wav/mp3/ogg audio file to mono 16 kHz float32 PCM,
// the format the transcriber consumes. Ogg containers are tried as Vorbis
// first, then Opus.
func DecodeFile(path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kind := sniffFormat(f, filepath.Ext(path))

	switch kind {
	case "wav":
		return decodeWAV(f, opt)
	case "mp3":
		return decodeMP3(f, opt)
	case "ogg":
		if samples, err := decodeOggVorbis(f, opt); err == nil {
			return samples, nil
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		samples, err := decodeOggOpus(f, opt)
		if err != nil {
			return nil, fmt.Errorf("cannot decode ogg as Vorbis or Opus: %w", err)
		}
		return samples, nil
	default:
		return nil, fmt.Errorf("unsupported audio format %q (supported: wav, mp3, ogg)", kind)
	}
}

// sniffFormat looks at the magic bytes first and falls back to the file
// extension. The read offset is restored.
func sniffFormat(f *os.File, ext string) string {
	br := bufio.NewReader(f)
	magic, _ := br.Peek(4)
	_, _ = f.Seek(0, io.SeekStart)

	switch {
	case bytes.Equal(magic, []byte("RIFF")):
		return "wav"
	case bytes.Equal(magic, []byte("OggS")):
		return "ogg"
	case len(magic) >= 3 && bytes.Equal(magic[:3], []byte("ID3")):
		return "mp3"
	}

	switch strings.ToLower(ext) {
	case ".wav":
		return "wav"
	case ".mp3":
		return "mp3"
	case ".ogg", ".oga":
		return "ogg"
	}
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}

func decodeWAV(r io.ReadSeeker, opt Options) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}

	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if pb == nil || pb.Data == nil {
		return nil, errors.New("empty wav")
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	x := intToFloat32(pb.Data, bitDepth)

	channels, rate := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			rate = pb.Format.SampleRate
		}
	}

	return finish(x, channels, rate, opt), nil
}

func decodeMP3(r io.Reader, opt Options) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}

	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}

	// the decoder always outputs interleaved stereo
	return finish(int16ToFloat32(ints), 2, rate, opt), nil
}

func decodeOggVorbis(r io.Reader, opt Options) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}

	return finish(pcm, format.Channels, format.SampleRate, opt), nil
}

func decodeOggOpus(rs io.ReadSeeker, opt Options) ([]float32, error) {
	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	channels := dec.ChannelCount()
	if channels <= 0 {
		channels = 1
	}

	var (
		pcm48 []float32
		buf   = make([]int16, 48_000*channels/2) // ~0.5s per read
	)
	for {
		n, err := dec.Read(buf) // n = samples per channel
		if n > 0 {
			pcm48 = append(pcm48, int16ToFloat32(buf[:n*channels])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(pcm48) == 0 {
		return nil, nil
	}

	// opus always decodes at 48 kHz
	return finish(pcm48, channels, 48000, opt), nil
}

// finish downmixes, resamples to the target rate and applies the sample cap.
func finish(x []float32, channels, rate int, opt Options) []float32 {
	if channels > 1 {
		x = downmixInterleaved(x, channels)
	}
	if rate != targetRate {
		x = resampleLinear(x, rate, targetRate)
	}
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x
}

func intToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(in) == 0 {
		return in
	}
	ratio := float64(outRate) / float64(inRate)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
