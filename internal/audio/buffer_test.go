package audio

import (
	"testing"
)

func TestRingBuffer_Write(t *testing.T) {
	rb := NewRingBuffer(10)

	// Write samples that fit
	written := rb.Write([]float64{0.1, 0.2, 0.3, 0.4, 0.5})
	if written != 5 {
		t.Errorf("Expected to write 5 samples, got %d", written)
	}
	if rb.Available() != 5 {
		t.Errorf("Expected available 5, got %d", rb.Available())
	}

	written = rb.Write([]float64{0.6, 0.7, 0.8})
	if written != 3 {
		t.Errorf("Expected to write 3 samples, got %d", written)
	}
	if rb.Available() != 8 {
		t.Errorf("Expected available 8, got %d", rb.Available())
	}
}

func TestRingBuffer_WriteOverflow(t *testing.T) {
	rb := NewRingBuffer(5)

	// Fill buffer (size-1 to avoid full/empty ambiguity)
	rb.Write([]float64{1, 2, 3, 4})
	if rb.Available() != 4 {
		t.Errorf("Expected available 4, got %d", rb.Available())
	}
	if !rb.IsFull() {
		t.Error("Expected buffer to be full after writing size-1 samples")
	}

	// Unread samples are never overwritten
	written := rb.Write([]float64{5, 6})
	if written != 0 {
		t.Errorf("Expected to write 0 samples (buffer already full), got %d", written)
	}

	dst := make([]float64, 4)
	rb.Read(dst)
	if dst[0] != 1 || dst[3] != 4 {
		t.Errorf("Expected original samples [1 .. 4], got %v", dst)
	}
}

func TestRingBuffer_Read(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]float64{0.5, -0.5, 0.25, -0.25, 1})

	dst := make([]float64, 3)
	read := rb.Read(dst)
	if read != 3 {
		t.Errorf("Expected to read 3 samples, got %d", read)
	}
	if dst[0] != 0.5 || dst[1] != -0.5 || dst[2] != 0.25 {
		t.Errorf("Expected [0.5 -0.5 0.25], got %v", dst)
	}
	if rb.Available() != 2 {
		t.Errorf("Expected available 2, got %d", rb.Available())
	}

	// Reading more than available returns what is there
	dst = make([]float64, 10)
	read = rb.Read(dst)
	if read != 2 {
		t.Errorf("Expected to read 2 samples, got %d", read)
	}
	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty")
	}
}

func TestRingBuffer_WrapAround(t *testing.T) {
	rb := NewRingBuffer(5)

	rb.Write([]float64{1, 2, 3})
	rb.Read(make([]float64, 2))

	// Wraps past the end of the backing slice
	written := rb.Write([]float64{4, 5, 6})
	if written != 3 {
		t.Errorf("Expected to write 3 samples, got %d", written)
	}

	dst := make([]float64, 4)
	read := rb.Read(dst)
	if read != 4 {
		t.Fatalf("Expected to read 4 samples, got %d", read)
	}
	expected := []float64{3, 4, 5, 6}
	for i := range expected {
		if dst[i] != expected[i] {
			t.Errorf("Expected %f at index %d, got %f", expected[i], i, dst[i])
		}
	}
}

func TestRingBuffer_Space(t *testing.T) {
	rb := NewRingBuffer(10)
	if rb.Space() != 9 {
		t.Errorf("Expected space 9, got %d", rb.Space())
	}

	rb.Write([]float64{1, 2, 3})
	if rb.Space() != 6 {
		t.Errorf("Expected space 6, got %d", rb.Space())
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]float64{1, 2, 3})
	rb.Clear()

	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty after Clear")
	}
	if rb.Available() != 0 {
		t.Errorf("Expected available 0, got %d", rb.Available())
	}
}

func TestRingBuffer_MinimumSize(t *testing.T) {
	rb := NewRingBuffer(0)
	if written := rb.Write([]float64{1, 2}); written != 1 {
		t.Errorf("Expected to write 1 sample into minimum-size buffer, got %d", written)
	}
}
