package audio

import "testing"

const pactlSample = `Sink Input #42
	Driver: protocol-native.c
	Sample Specification: s16le 2ch 44100Hz
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
		media.name = "AudioStream"
Sink Input #57
	Driver: protocol-native.c
	Volume: front-left: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "emo-bridged"
`

func TestParseSinkInputs(t *testing.T) {
	t.Run("parses ids, volumes and app names", func(t *testing.T) {
		streams := parseSinkInputs(pactlSample)
		if len(streams) != 2 {
			t.Fatalf("len = %d", len(streams))
		}

		if streams[0].ID != 42 || streams[0].Volume != 80 || streams[0].AppName != "Firefox" {
			t.Errorf("stream[0] = %+v", streams[0])
		}
		if streams[1].ID != 57 || streams[1].Volume != 100 || streams[1].AppName != "emo-bridged" {
			t.Errorf("stream[1] = %+v", streams[1])
		}
	})

	t.Run("empty output yields nil", func(t *testing.T) {
		if streams := parseSinkInputs("no sink inputs\n"); streams != nil {
			t.Errorf("got %v", streams)
		}
	})
}

func TestDuckerIsSelf(t *testing.T) {
	d := NewDucker([]string{"emo-bridged"}, 20)

	if !d.isSelf(streamInfo{AppName: "emo-bridged"}) {
		t.Error("own stream should be self")
	}
	if d.isSelf(streamInfo{AppName: "Firefox"}) {
		t.Error("foreign stream should not be self")
	}
}

func TestNewDuckerClampsFloor(t *testing.T) {
	if d := NewDucker(nil, -5); d.minVolume != 0 {
		t.Errorf("minVolume = %d", d.minVolume)
	}
	if d := NewDucker(nil, 900); d.minVolume != 150 {
		t.Errorf("minVolume = %d", d.minVolume)
	}
}
