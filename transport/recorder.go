package transport

import "sync"

// Recorder is an in-memory Sender that keeps a copy of every buffer sent.
type Recorder struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send records a copy of b. If FailWith was called, the buffer is still
// recorded and the configured error is returned.
func (r *Recorder) Send(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, append([]byte(nil), b...))
	return r.err
}

// FailWith makes subsequent sends return err. Pass nil to clear.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Frames returns copies of all recorded buffers in send order.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	for i, f := range r.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Len returns the number of recorded buffers.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Bytes returns the total number of recorded bytes.
func (r *Recorder) Bytes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		n += len(f)
	}
	return n
}

// Reset discards recorded buffers.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}
