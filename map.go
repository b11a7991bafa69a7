package tabula

import (
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/pkg/errors"
)

// Map is a handle on a last-writer-wins map container.
type Map struct {
	doc *Doc
	id  rdx.ID
}

// Map returns the root map of the given name.
func (d *Doc) Map(name string) Map {
	return Map{doc: d, id: rootID(MapContainer, name)}
}

// MapAt returns a handle on the map created by op id.
func (d *Doc) MapAt(id rdx.ID) Map {
	return Map{doc: d, id: id}
}

func (m Map) ID() rdx.ID {
	return m.id
}

func (m Map) Doc() *Doc {
	return m.doc
}

func (m Map) IsZero() bool {
	return m.doc == nil
}

func (m Map) get(key string) (Value, error) {
	if err := m.doc.checkReadable(m.id, MapContainer); err != nil {
		return None(), err
	}
	data, ok, err := m.doc.get(entryKey(m.id, key))
	if err != nil || !ok {
		return None(), err
	}
	_, val, err := parseEntry(data)
	return val, err
}

// Get returns the live value under key.
func (m Map) Get(key string) (Value, bool) {
	m.doc.lock.Lock()
	defer m.doc.lock.Unlock()
	val, err := m.get(key)
	return val, err == nil && !val.IsNone()
}

// GetMap returns the nested map under key.
func (m Map) GetMap(key string) (Map, bool) {
	val, ok := m.Get(key)
	if ck, id, isc := val.Container(); ok && isc && ck == MapContainer {
		return Map{doc: m.doc, id: id}, true
	}
	return Map{}, false
}

// GetList returns the nested list under key.
func (m Map) GetList(key string) (List, bool) {
	val, ok := m.Get(key)
	if ck, id, isc := val.Container(); ok && isc && ck == ListContainer {
		return List{doc: m.doc, id: id}, true
	}
	return List{}, false
}

// Entries visits live entries in key byte order until fn returns false.
func (m Map) Entries(fn func(key string, val Value) bool) error {
	m.doc.lock.Lock()
	defer m.doc.lock.Unlock()
	if err := m.doc.checkReadable(m.id, MapContainer); err != nil {
		return err
	}
	stop := errors.New("stop")
	err := m.doc.scan(containerPrefix(entryPrefix, m.id), func(key, data []byte) error {
		_, val, err := parseEntry(data)
		if err != nil {
			return errors.Wrapf(err, "entry %q", entryKeyName(key))
		}
		if val.IsNone() {
			return nil
		}
		if !fn(entryKeyName(key), val) {
			return stop
		}
		return nil
	})
	if err == stop {
		err = nil
	}
	return err
}

func (m Map) Keys() (keys []string) {
	_ = m.Entries(func(key string, _ Value) bool {
		keys = append(keys, key)
		return true
	})
	return
}

func (m Map) Len() (n int) {
	_ = m.Entries(func(string, Value) bool {
		n++
		return true
	})
	return
}

// Set writes a scalar or a plain record under key.
func (m Map) Set(key string, v Value) error {
	if v.Kind() == KindContainer {
		return tabula_errors.ErrBadValue
	}
	_, err := m.set(key, v)
	return err
}

// Delete removes the entry. Deleting a missing key is a no-op.
func (m Map) Delete(key string) error {
	m.doc.lock.Lock()
	val, err := m.get(key)
	m.doc.lock.Unlock()
	if err != nil || val.IsNone() {
		return err
	}
	_, err = m.set(key, None())
	return err
}

// SetMap puts a new empty map under key.
func (m Map) SetMap(key string) (Map, error) {
	id, err := m.set(key, containerValue(MapContainer, rdx.ID0))
	return Map{doc: m.doc, id: id}, err
}

// SetList puts a new empty list under key.
func (m Map) SetList(key string) (List, error) {
	id, err := m.set(key, containerValue(ListContainer, rdx.ID0))
	return List{doc: m.doc, id: id}, err
}

func (m Map) set(key string, v Value) (rdx.ID, error) {
	d := m.doc
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.checkReadable(m.id, MapContainer); err != nil {
		return rdx.ID0, err
	}
	return d.commit(&op{kind: OpEntry, ref: m.id, key: key, val: v})
}
