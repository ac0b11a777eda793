package domain

// MultiPV is the number of principal variations requested from the engine.
const MultiPV = 5

type Position struct {
	FEN   string `json:"fen"`
	Phase string `json:"phase"`
}

type RankedMove struct {
	Move   string `json:"move"`
	EvalCP int32  `json:"eval_cp"`
}

func (m RankedMove) IsEmpty() bool { return m.Move == "" }

// Ranking holds one slot per engine rank; slot i is multipv i+1.
type Ranking []RankedMove

func NewRanking() Ranking { return make(Ranking, MultiPV) }

// Best returns rank 1, or the first filled slot when the engine left rank 1 empty.
func (r Ranking) Best() (RankedMove, bool) {
	for _, m := range r {
		if !m.IsEmpty() {
			return m, true
		}
	}
	return RankedMove{}, false
}

func (r Ranking) Empty() bool {
	_, ok := r.Best()
	return !ok
}

// Reported trims trailing placeholders after the highest rank the engine filled.
func (r Ranking) Reported() Ranking {
	n := len(r)
	for n > 0 && r[n-1].IsEmpty() {
		n--
	}
	return r[:n]
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TrainingExample struct {
	Messages []Message `json:"messages"`
}
