package reducer

// table is the open-task set, iterated in creation order.
type table struct {
	ids  []string
	byID map[string]*OpenTask
}

func newTable() *table {
	return &table{byID: make(map[string]*OpenTask)}
}

func (t *table) get(id string) (*OpenTask, bool) {
	o, ok := t.byID[id]
	return o, ok
}

func (t *table) put(o *OpenTask) {
	if _, ok := t.byID[o.Task]; !ok {
		t.ids = append(t.ids, o.Task)
	}
	t.byID[o.Task] = o
}

func (t *table) remove(id string) {
	if _, ok := t.byID[id]; !ok {
		return
	}
	delete(t.byID, id)
	for i, v := range t.ids {
		if v == id {
			t.ids = append(t.ids[:i], t.ids[i+1:]...)
			return
		}
	}
}

func (t *table) each(fn func(*OpenTask)) {
	for _, id := range t.ids {
		fn(t.byID[id])
	}
}

func (t *table) list() []OpenTask {
	out := make([]OpenTask, 0, len(t.ids))
	t.each(func(o *OpenTask) { out = append(out, *o) })
	return out
}

func (t *table) len() int {
	return len(t.ids)
}
