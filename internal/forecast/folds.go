package forecast

import "time"

// FoldMap assigns every training timestamp to exactly one cross-validation
// fold. Folds are contiguous time blocks, which keeps the partition explicit
// and the out-of-fold property mechanically checkable: a base prediction fed
// to fusion training for timestamp t must come from a model that never saw
// t's fold.
type FoldMap struct {
	k    int
	fold map[int64]int
}

// NewFoldMap partitions timestamps (assumed ascending) into k contiguous
// blocks. k is clamped to [1, len(timestamps)].
func NewFoldMap(timestamps []time.Time, k int) *FoldMap {
	if k < 1 {
		k = 1
	}
	if len(timestamps) > 0 && k > len(timestamps) {
		k = len(timestamps)
	}
	m := &FoldMap{k: k, fold: make(map[int64]int, len(timestamps))}
	n := len(timestamps)
	for i, ts := range timestamps {
		f := i * k / n
		if f >= k {
			f = k - 1
		}
		m.fold[ts.UnixNano()] = f
	}
	return m
}

// K returns the fold count.
func (m *FoldMap) K() int { return m.k }

// Fold returns the fold id for ts.
func (m *FoldMap) Fold(ts time.Time) (int, bool) {
	f, ok := m.fold[ts.UnixNano()]
	return f, ok
}

// Split partitions examples into those outside fold f (training) and those
// inside it (held out). Examples with unmapped timestamps go to neither.
func (m *FoldMap) Split(examples []Example, f int) (train, held []Example) {
	for _, ex := range examples {
		fold, ok := m.Fold(ex.Timestamp)
		if !ok {
			continue
		}
		if fold == f {
			held = append(held, ex)
		} else {
			train = append(train, ex)
		}
	}
	return train, held
}
