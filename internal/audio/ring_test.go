package audio

import "testing"

func TestRing(t *testing.T) {
	t.Run("wraps and keeps the newest samples", func(t *testing.T) {
		ring := NewRing(10)

		for i := 0; i < 20; i++ {
			ring.Add([]float32{float32(i)})
		}

		got := ring.Read()
		if len(got) != 10 {
			t.Fatalf("len = %d", len(got))
		}
		for i := 0; i < 10; i++ {
			if got[i] != float32(10+i) {
				t.Errorf("got[%d] = %g, want %g", i, got[i], float32(10+i))
			}
		}
	})

	t.Run("partial fill returns only written samples", func(t *testing.T) {
		ring := NewRing(8)
		ring.Add([]float32{1, 2, 3})

		got := ring.Read()
		if len(got) != 3 || got[0] != 1 || got[2] != 3 {
			t.Errorf("got = %v", got)
		}
	})

	t.Run("clear empties the ring", func(t *testing.T) {
		ring := NewRing(4)
		ring.Add([]float32{1, 2, 3, 4})
		ring.Clear()

		if got := ring.Read(); len(got) != 0 {
			t.Errorf("got = %v", got)
		}
	})
}
