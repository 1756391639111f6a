package fdm

// Snapshot describes the outcome of a Reader.Read call.
type Snapshot struct {
	// Iteration is the generation held by the destination slice.
	Iteration uint64
	// Updated is false when the read was skipped because nothing changed.
	Updated bool
}

// Reader copies consistent snapshots of the current output grid for a single
// consumer. It is not safe for concurrent use.
type Reader struct {
	sys    *System
	owner  *Owner
	last   uint64
	primed bool
}

// NewReader returns a Reader that suspends through owner. A nil owner gets a
// dedicated one.
func NewReader(sys *System, owner *Owner) *Reader {
	if owner == nil {
		owner = sys.NewOwner("reader")
	}
	return &Reader{sys: sys, owner: owner}
}

// Owner returns the gate owner used by the reader.
func (r *Reader) Owner() *Owner { return r.owner }

// Invalidate forces the next Read to copy.
func (r *Reader) Invalidate() { r.primed = false }

// Read copies the current output grid into dst, which must hold width*height
// values. The copy is skipped when the iteration has not advanced since the
// last read and nobody holds the gate.
func (r *Reader) Read(dst []float32) (Snapshot, error) {
	iter := r.sys.Iteration()
	if r.primed && iter == r.last && !r.sys.IsSuspended() {
		return Snapshot{Iteration: iter}, nil
	}
	var snap Snapshot
	err := r.owner.WithSuspended(func() error {
		snap.Iteration = r.sys.Iteration()
		return r.sys.ReadOutput(r.owner, dst)
	})
	if err != nil {
		return snap, err
	}
	r.last = snap.Iteration
	r.primed = true
	snap.Updated = true
	return snap, nil
}
