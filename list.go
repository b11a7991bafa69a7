package tabula

import (
	"slices"

	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/pkg/errors"
)

type elem struct {
	id     rdx.ID
	anchor rdx.ID
	dead   bool
}

// listIndex is the materialized order of a list: every element ever
// inserted, tombstones included, in document order.
type listIndex struct {
	elems []elem
	has   map[rdx.ID]struct{}
	// live positions into elems, rebuilt lazily
	live   []int
	liveOK bool
	count  int
}

func newListIndex() *listIndex {
	return &listIndex{has: make(map[rdx.ID]struct{}), liveOK: true}
}

func (li *listIndex) Len() int {
	return li.count
}

func (li *listIndex) contains(id rdx.ID) bool {
	_, ok := li.has[id]
	return ok
}

// find returns the position of id in elems or -1. The scan runs from
// the end since appends anchor on recent elements.
func (li *listIndex) find(id rdx.ID) int {
	if !li.contains(id) {
		return -1
	}
	for p := len(li.elems) - 1; p >= 0; p-- {
		if li.elems[p].id == id {
			return p
		}
	}
	return -1
}

// integrate places a new element right after its anchor, skipping
// over concurrent siblings with greater ids. The result is the same
// on every replica regardless of arrival order.
func (li *listIndex) integrate(id, anchor rdx.ID, dead bool) int {
	p := 0
	if !anchor.IsZero() {
		p = li.find(anchor) + 1
	}
	for p < len(li.elems) && li.elems[p].id.Compare(id) > 0 {
		p++
	}
	li.elems = slices.Insert(li.elems, p, elem{id: id, anchor: anchor, dead: dead})
	li.has[id] = struct{}{}
	if dead {
		return p
	}
	li.count++
	if li.liveOK && p == len(li.elems)-1 {
		li.live = append(li.live, p)
	} else {
		li.liveOK = false
	}
	return p
}

func (li *listIndex) kill(p int) bool {
	if li.elems[p].dead {
		return false
	}
	li.elems[p].dead = true
	li.count--
	li.liveOK = false
	return true
}

func (li *listIndex) ensureLive() {
	if li.liveOK {
		return
	}
	li.live = li.live[:0]
	for p, e := range li.elems {
		if !e.dead {
			li.live = append(li.live, p)
		}
	}
	li.liveOK = true
}

// at returns the i-th live element.
func (li *listIndex) at(i int) (elem, bool) {
	if i < 0 || i >= li.count {
		return elem{}, false
	}
	li.ensureLive()
	return li.elems[li.live[i]], true
}

func (li *listIndex) last() rdx.ID {
	if len(li.elems) == 0 {
		return rdx.ID0
	}
	return li.elems[len(li.elems)-1].id
}

// rebuildList restores the order from stored elements: each element
// is a child of its anchor, siblings go in descending id order, and
// the document order is the depth-first walk of that tree.
func rebuildList(stored []elem) *listIndex {
	children := make(map[rdx.ID][]elem, len(stored))
	known := make(map[rdx.ID]struct{}, len(stored))
	for _, e := range stored {
		known[e.id] = struct{}{}
	}
	for _, e := range stored {
		parent := e.anchor
		if _, ok := known[parent]; !ok {
			parent = rdx.ID0
		}
		children[parent] = append(children[parent], e)
	}
	for _, sibs := range children {
		slices.SortFunc(sibs, func(a, b elem) int { return b.id.Compare(a.id) })
	}
	li := newListIndex()
	li.elems = make([]elem, 0, len(stored))
	stack := slices.Clone(children[rdx.ID0])
	slices.Reverse(stack)
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		li.elems = append(li.elems, e)
		li.has[e.id] = struct{}{}
		if !e.dead {
			li.count++
		}
		kids := children[e.id]
		for k := len(kids) - 1; k >= 0; k-- {
			stack = append(stack, kids[k])
		}
	}
	li.liveOK = false
	return li
}

// listIndex returns the cached index of a list, loading it from the
// store on a miss.
func (d *Doc) listIndex(cid rdx.ID) (*listIndex, error) {
	if li, ok := d.lists.Get(cid); ok {
		return li, nil
	}
	var stored []elem
	err := d.scan(containerPrefix(elemPrefix, cid), func(key, val []byte) error {
		anchor, _, dead, err := parseElem(val)
		if err != nil {
			return errors.Wrapf(err, "element %x", key)
		}
		stored = append(stored, elem{id: elemKeyID(key), anchor: anchor, dead: dead})
		return nil
	})
	if err != nil {
		return nil, err
	}
	li := rebuildList(stored)
	d.lists.Add(cid, li)
	ListRebuilds.Inc()
	return li, nil
}

// List is a handle on a list container. Handles are plain values;
// any number of them may point at the same list.
type List struct {
	doc *Doc
	id  rdx.ID
}

// List returns the root list of the given name.
func (d *Doc) List(name string) List {
	return List{doc: d, id: rootID(ListContainer, name)}
}

// ListAt returns a handle on the list created by op id.
func (d *Doc) ListAt(id rdx.ID) List {
	return List{doc: d, id: id}
}

func (l List) ID() rdx.ID {
	return l.id
}

func (l List) Doc() *Doc {
	return l.doc
}

func (l List) index() (*listIndex, error) {
	if err := l.doc.checkReadable(l.id, ListContainer); err != nil {
		return nil, err
	}
	return l.doc.listIndex(l.id)
}

func (l List) Len() int {
	l.doc.lock.Lock()
	defer l.doc.lock.Unlock()
	li, err := l.index()
	if err != nil {
		return 0
	}
	return li.Len()
}

func (l List) value(e elem) (Value, error) {
	data, ok, err := l.doc.get(elemKey(l.id, e.id))
	if err != nil || !ok {
		return None(), err
	}
	_, val, _, err := parseElem(data)
	if ck, _, isc := val.Container(); isc {
		val = containerValue(ck, e.id)
	}
	return val, err
}

// Get returns the i-th live value.
func (l List) Get(i int) (Value, bool) {
	l.doc.lock.Lock()
	defer l.doc.lock.Unlock()
	li, err := l.index()
	if err != nil {
		return None(), false
	}
	e, ok := li.at(i)
	if !ok {
		return None(), false
	}
	val, err := l.value(e)
	return val, err == nil && !val.IsNone()
}

// GetMap returns the i-th value as a nested map.
func (l List) GetMap(i int) (Map, bool) {
	val, ok := l.Get(i)
	if ck, id, isc := val.Container(); ok && isc && ck == MapContainer {
		return Map{doc: l.doc, id: id}, true
	}
	return Map{}, false
}

// Values returns all live values in order.
func (l List) Values() []Value {
	l.doc.lock.Lock()
	defer l.doc.lock.Unlock()
	li, err := l.index()
	if err != nil {
		return nil
	}
	li.ensureLive()
	ret := make([]Value, 0, li.count)
	for _, p := range li.live {
		val, err := l.value(li.elems[p])
		if err != nil {
			l.doc.log.Warn("unreadable list element", "list", l.id.String(), "err", err)
			continue
		}
		ret = append(ret, val)
	}
	return ret
}

// IDs returns the element ids of live values, in order.
func (l List) IDs() []rdx.ID {
	l.doc.lock.Lock()
	defer l.doc.lock.Unlock()
	li, err := l.index()
	if err != nil {
		return nil
	}
	li.ensureLive()
	ids := make([]rdx.ID, 0, li.count)
	for _, p := range li.live {
		ids = append(ids, li.elems[p].id)
	}
	return ids
}

// Insert puts v at position i, 0 <= i <= Len.
func (l List) Insert(i int, v Value) error {
	_, err := l.insert(i, v)
	return err
}

// Push appends v.
func (l List) Push(v Value) error {
	return l.Insert(-1, v)
}

// InsertMap puts a new empty map at position i.
func (l List) InsertMap(i int) (Map, error) {
	id, err := l.insert(i, containerValue(MapContainer, rdx.ID0))
	return Map{doc: l.doc, id: id}, err
}

// PushMap appends a new empty map.
func (l List) PushMap() (Map, error) {
	return l.InsertMap(-1)
}

// InsertList puts a new empty list at position i.
func (l List) InsertList(i int) (List, error) {
	id, err := l.insert(i, containerValue(ListContainer, rdx.ID0))
	return List{doc: l.doc, id: id}, err
}

// insert with i == -1 appends after the very last element.
func (l List) insert(i int, v Value) (rdx.ID, error) {
	if v.IsNone() {
		return rdx.ID0, tabula_errors.ErrBadValue
	}
	d := l.doc
	d.lock.Lock()
	defer d.lock.Unlock()
	li, err := l.index()
	if err != nil {
		return rdx.ID0, err
	}
	anchor := rdx.ID0
	switch {
	case i == -1:
		anchor = li.last()
	case i < 0 || i > li.Len():
		return rdx.ID0, errors.Wrapf(tabula_errors.ErrOutOfBounds, "insert at %d of %d", i, li.Len())
	case i > 0:
		e, _ := li.at(i - 1)
		anchor = e.id
	}
	return d.commit(&op{kind: OpInsert, ref: l.id, anchor: anchor, val: v})
}

// Delete removes the i-th live element.
func (l List) Delete(i int) error {
	d := l.doc
	d.lock.Lock()
	defer d.lock.Unlock()
	li, err := l.index()
	if err != nil {
		return err
	}
	e, ok := li.at(i)
	if !ok {
		return errors.Wrapf(tabula_errors.ErrOutOfBounds, "delete %d of %d", i, li.Len())
	}
	_, err = d.commit(&op{kind: OpDelete, ref: l.id, anchor: e.id})
	return err
}
