package audio

// Ring keeps the most recent samples so the first syllable of an utterance
// is not clipped while the endpointer is still deciding whether speech
// started.
type Ring struct {
	buffer []float32
	head   int
	filled int
}

func NewRing(size int) *Ring {
	return &Ring{buffer: make([]float32, size)}
}

func (r *Ring) Add(samples []float32) {
	for _, s := range samples {
		r.buffer[r.head] = s
		r.head = (r.head + 1) % len(r.buffer)
		if r.filled < len(r.buffer) {
			r.filled++
		}
	}
}

// Read returns the buffered samples oldest-first. Only the portion written
// so far is returned when the ring has not wrapped yet.
func (r *Ring) Read() []float32 {
	out := make([]float32, r.filled)
	start := (r.head - r.filled + len(r.buffer)) % len(r.buffer)
	for i := 0; i < r.filled; i++ {
		out[i] = r.buffer[(start+i)%len(r.buffer)]
	}
	return out
}

func (r *Ring) Clear() {
	r.head = 0
	r.filled = 0
}
