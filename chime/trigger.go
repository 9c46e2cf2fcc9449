package chime

// Source is the random stream used for every stochastic draw. *rand.Rand from
// math/rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// State is the trigger state: Idle or the 1-based index of the tube being
// excited.
type State int

// Idle means no tube is excited.
const Idle State = 0

// Tube returns the zero-based tube index, or -1 for Idle.
func (s State) Tube() int {
	return int(s) - 1
}

// Trigger decides which tube, if any, is excited. Decisions happen only at
// self-scheduled sample indices; the state is held in between.
type Trigger struct {
	tubes    int
	dwellMin int
	dwellMax int
	rng      Source

	state State
	next  int

	// scratch for categorical draws
	outcomes []State
	probs    []float64
}

// NewTrigger creates a trigger for the given tube count with a dwell interval
// of [dwellMin, dwellMax] samples between decisions.
func NewTrigger(tubes int, dwellMin int, dwellMax int, rng Source) (*Trigger, error) {
	if tubes < 1 {
		return nil, configErrorf("trigger needs at least one tube, got %d", tubes)
	}
	if dwellMin < 1 {
		return nil, configErrorf("dwell minimum must be >= 1 sample, got %d", dwellMin)
	}
	if dwellMin > dwellMax {
		return nil, configErrorf("empty dwell range [%d, %d]", dwellMin, dwellMax)
	}
	if rng == nil {
		return nil, configErrorf("trigger needs a random source")
	}
	return &Trigger{
		tubes:    tubes,
		dwellMin: dwellMin,
		dwellMax: dwellMax,
		rng:      rng,
		state:    Idle,
		outcomes: make([]State, 0, tubes+1),
		probs:    make([]float64, 0, tubes+1),
	}, nil
}

// State returns the current state.
func (t *Trigger) State() State {
	return t.state
}

// NextDecision returns the sample index of the next scheduled decision.
func (t *Trigger) NextDecision() int {
	return t.next
}

// Update advances the machine to sample n with strike probability p and
// returns the (possibly held) state.
func (t *Trigger) Update(n int, p float64) State {
	if n != t.next {
		return t.state
	}

	t.outcomes = append(t.outcomes[:0], Idle)
	t.probs = append(t.probs[:0], 1-p)
	if t.state == Idle {
		share := p / float64(t.tubes)
		for k := 1; k <= t.tubes; k++ {
			t.outcomes = append(t.outcomes, State(k))
			t.probs = append(t.probs, share)
		}
	} else {
		left, right := t.neighbors(t.state)
		t.outcomes = append(t.outcomes, left, right)
		t.probs = append(t.probs, p/2, p/2)
	}
	t.state = t.choose()
	t.next = n + t.dwellMin + t.rng.Intn(t.dwellMax-t.dwellMin+1)
	return t.state
}

// neighbors returns the circular neighbors of tube s.
func (t *Trigger) neighbors(s State) (State, State) {
	left := s - 1
	if left < 1 {
		left = State(t.tubes)
	}
	right := s + 1
	if right > State(t.tubes) {
		right = 1
	}
	return left, right
}

func (t *Trigger) choose() State {
	u := t.rng.Float64()
	cum := 0.0
	for i, p := range t.probs {
		cum += p
		if u < cum {
			return t.outcomes[i]
		}
	}
	// round-off: cumulative sum fell short of 1
	return t.outcomes[len(t.outcomes)-1]
}
