// Package tabula is a small embedded CRDT document store: lists and maps
// keyed by replica-stamped op ids, persisted in pebble, exportable as
// self-contained snapshots that merge with other replicas.
package tabula

import (
	"encoding/binary"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/drpcorg/tabula/utils"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

const srcBits = 20

type Options struct {
	pebble.Options

	// Src is the replica id, random if zero. Zero itself is reserved
	// for root containers.
	Src uint64
	// Name labels the replica in logs, a fresh UUID if empty.
	Name string
	// Dir is the pebble directory, in-memory if empty.
	Dir    string
	Logger utils.Logger
	// MaxBatchLen is the number of pending writes that forces a flush.
	MaxBatchLen int
	// ListCacheSize is how many list indexes stay materialized.
	ListCacheSize int
}

func (o *Options) SetDefaults() {
	for o.Src == 0 {
		o.Src = rand.Uint64N(1 << srcBits)
	}
	if o.Name == "" {
		o.Name = uuid.Must(uuid.NewV7()).String()
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
	if o.MaxBatchLen == 0 {
		o.MaxBatchLen = 1 << 14
	}
	if o.ListCacheSize == 0 {
		o.ListCacheSize = 1 << 10
	}
	o.Merger = &pebble.Merger{
		Name:  "tabula.crdt",
		Merge: merger,
	}
}

// Doc is one replica of a document. All methods are safe for
// concurrent use; writes are serialized.
type Doc struct {
	opts  Options
	db    *pebble.DB
	batch *pebble.Batch
	lock  sync.Mutex

	src    uint64
	name   string
	clock  uint64
	vv     rdx.VV
	logLen uint64

	kinds *xsync.MapOf[rdx.ID, ContainerKind]
	lists *lru.Cache[rdx.ID, *listIndex]
	log   utils.Logger
}

// New opens (or creates) a replica.
func New(opts Options) (*Doc, error) {
	opts.SetDefaults()
	dir := opts.Dir
	if dir == "" {
		dir = "tabula"
		if opts.FS == nil {
			opts.FS = vfs.NewMem()
		}
	}
	db, err := pebble.Open(dir, &opts.Options)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dir)
	}
	d := &Doc{
		opts:  opts,
		db:    db,
		src:   opts.Src,
		name:  opts.Name,
		vv:    make(rdx.VV),
		kinds: xsync.NewMapOf[rdx.ID, ContainerKind](),
		log:   opts.Logger.With("replica", opts.Name),
	}
	d.lists, err = lru.New[rdx.ID, *listIndex](opts.ListCacheSize)
	if err == nil {
		err = d.load()
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	d.batch = db.NewIndexedBatch()
	d.log.Debug("replica open", "src", d.src, "dir", opts.Dir, "ops", d.logLen)
	return d, nil
}

// load restores the in-memory state of a persisted replica.
func (d *Doc) load() error {
	val, closer, err := d.db.Get(vvKey)
	switch {
	case err == nil:
		d.vv, err = rdx.VVFromTLV(val)
		_ = closer.Close()
		if err != nil {
			return errors.Wrap(err, "stored version vector")
		}
	case !errors.Is(err, pebble.ErrNotFound):
		return err
	}
	d.clock = d.vv.MaxSeq()
	// ops merged from shallow snapshots may run ahead of the vector
	val, closer, err = d.db.Get(clockKey)
	switch {
	case err == nil:
		if len(val) == 8 {
			d.clock = max(d.clock, bigEndian(val))
		}
		_ = closer.Close()
	case !errors.Is(err, pebble.ErrNotFound):
		return err
	}

	it := d.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{logPrefix},
		UpperBound: []byte{logPrefix + 1},
	})
	if it.Last() && len(it.Key()) == 9 {
		d.logLen = bigEndian(it.Key()[1:]) + 1
	}
	if err = it.Close(); err != nil {
		return err
	}

	it = d.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{kindPrefix},
		UpperBound: []byte{kindPrefix + 1},
	})
	for it.First(); it.Valid(); it.Next() {
		if len(it.Key()) == 17 && len(it.Value()) == 1 {
			d.kinds.Store(rdx.IDFromBytes(it.Key()[1:]), ContainerKind(it.Value()[0]))
		}
	}
	return it.Close()
}

func bigEndian(b []byte) (n uint64) {
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return
}

func (d *Doc) Source() uint64 {
	return d.src
}

func (d *Doc) Name() string {
	return d.name
}

// Clock is the Lamport clock: the largest op sequence seen so far.
func (d *Doc) Clock() uint64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.clock
}

// VersionVector returns a copy of the replica's version vector.
func (d *Doc) VersionVector() rdx.VV {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.vv.Clone()
}

// OpCount is the number of ops in the replica's log.
func (d *Doc) OpCount() uint64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.logLen
}

// Database exposes the underlying store, e.g. for metrics.
func (d *Doc) Database() *pebble.DB {
	return d.db
}

func (d *Doc) Logger() utils.Logger {
	return d.log
}

// Flush commits pending writes to the store.
func (d *Doc) Flush() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.db == nil {
		return tabula_errors.ErrClosed
	}
	return d.flush()
}

func (d *Doc) flush() error {
	if d.batch.Empty() {
		return nil
	}
	if err := d.batch.Set(vvKey, d.vv.TLV(), nil); err != nil {
		return err
	}
	if err := d.batch.Set(clockKey, binary.BigEndian.AppendUint64(nil, d.clock), nil); err != nil {
		return err
	}
	n := d.batch.Count()
	if err := d.batch.Commit(pebble.NoSync); err != nil {
		return errors.Wrap(err, "commit")
	}
	_ = d.batch.Close()
	d.batch = d.db.NewIndexedBatch()
	BatchFlushes.Inc()
	d.log.Debug("batch flushed", "writes", n, "ops", d.logLen)
	return nil
}

func (d *Doc) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.db == nil {
		return tabula_errors.ErrClosed
	}
	err := d.flush()
	_ = d.batch.Close()
	if cerr := d.db.Close(); err == nil {
		err = cerr
	}
	d.db = nil
	d.lists.Purge()
	return err
}

// get reads a key through the pending batch.
func (d *Doc) get(key []byte) ([]byte, bool, error) {
	val, closer, err := d.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	ret := slices.Clone(val)
	_ = closer.Close()
	return ret, true, nil
}

// scan visits every key with the prefix, in key order, through the
// pending batch. Values are only valid during the callback.
func (d *Doc) scan(prefix []byte, fn func(key, val []byte) error) error {
	it := d.batch.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	var err error
	for it.First(); it.Valid() && err == nil; it.Next() {
		err = fn(it.Key(), it.Value())
	}
	if cerr := it.Close(); err == nil {
		err = cerr
	}
	return err
}

// rootID names a root container: source zero, sequence hashed from
// the kind and the name, so every replica derives the same id.
func rootID(ck ContainerKind, name string) rdx.ID {
	h := xxhash.Sum64String(string([]byte{byte(ck)}) + name)
	return rdx.IDfromSrcPro(0, h&^rdx.OffMask)
}

func (d *Doc) kindOf(cid rdx.ID) (ContainerKind, bool) {
	return d.kinds.Load(cid)
}

func (d *Doc) registerContainer(cid rdx.ID, ck ContainerKind) error {
	if _, ok := d.kinds.LoadOrStore(cid, ck); ok {
		return nil
	}
	return d.batch.Set(kindKey(cid), []byte{byte(ck)}, nil)
}

// checkContainer makes sure cid exists and is of kind ck. Root
// containers spring into existence on first use.
func (d *Doc) checkContainer(cid rdx.ID, ck ContainerKind) error {
	have, ok := d.kindOf(cid)
	switch {
	case ok && have != ck:
		return errors.Wrapf(tabula_errors.ErrWrongContainerKind, "%s is %c", cid.String(), have)
	case ok:
		return nil
	case cid.Src() == 0:
		return d.registerContainer(cid, ck)
	}
	return errors.Wrapf(tabula_errors.ErrCausalityBroken, "container %s", cid.String())
}

// readable tells whether cid can be read as a ck container. Unknown
// containers read as empty.
func (d *Doc) readable(cid rdx.ID, ck ContainerKind) bool {
	have, ok := d.kindOf(cid)
	return !ok || have == ck
}

func (d *Doc) checkReadable(cid rdx.ID, ck ContainerKind) error {
	switch {
	case d.db == nil:
		return tabula_errors.ErrClosed
	case !d.readable(cid, ck):
		return tabula_errors.ErrWrongContainerKind
	}
	return nil
}
