package gateway

// Table maps small integer indices to channels. Freed indices are reused,
// lowest first.
type Table struct {
	slots []*Channel
	size  int
}

func NewTable() *Table {
	return &Table{slots: make([]*Channel, 0, 16)}
}

// Insert stores c at the lowest free index and returns that index.
func (t *Table) Insert(c *Channel) int {
	t.size++
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = c
			return i
		}
	}
	t.slots = append(t.slots, c)
	return len(t.slots) - 1
}

func (t *Table) Get(index int) (*Channel, bool) {
	if index < 0 || index >= len(t.slots) || t.slots[index] == nil {
		return nil, false
	}
	return t.slots[index], true
}

func (t *Table) Remove(index int) (*Channel, bool) {
	c, ok := t.Get(index)
	if !ok {
		return nil, false
	}
	t.slots[index] = nil
	t.size--
	for n := len(t.slots); n > 0 && t.slots[n-1] == nil; n-- {
		t.slots = t.slots[:n-1]
	}
	return c, true
}

func (t *Table) Len() int {
	return t.size
}

// Range calls fn for every occupied slot in index order until fn returns
// false.
func (t *Table) Range(fn func(index int, c *Channel) bool) {
	for i, c := range t.slots {
		if c != nil && !fn(i, c) {
			return
		}
	}
}
