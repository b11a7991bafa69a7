package tabula

import (
	"fmt"
	"io"

	"github.com/drpcorg/tabula/rdx"
	"github.com/drpcorg/tabula/tabula_errors"
	"github.com/pkg/errors"
)

// DumpAll prints containers, their contents and the version vector.
func (d *Doc) DumpAll(writer io.Writer) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.dumpKinds(writer); err != nil {
		return err
	}
	if err := d.dumpEntries(writer, []byte{entryPrefix}); err != nil {
		return err
	}
	if err := d.dumpElems(writer, []byte{elemPrefix}); err != nil {
		return err
	}
	_, err := fmt.Fprintln(writer, "vv\t", d.vv.String())
	return err
}

// DumpContainer prints the kind and the contents of one container.
func (d *Doc) DumpContainer(writer io.Writer, cid rdx.ID) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.db == nil {
		return tabula_errors.ErrClosed
	}
	ck, ok := d.kindOf(cid)
	if !ok {
		return errors.Wrapf(tabula_errors.ErrUnknownContainer, "%s", cid.String())
	}
	if _, err := fmt.Fprintf(writer, "%s\t%c\n", cid.String(), ck); err != nil {
		return err
	}
	if ck == MapContainer {
		return d.dumpEntries(writer, containerPrefix(entryPrefix, cid))
	}
	return d.dumpElems(writer, containerPrefix(elemPrefix, cid))
}

func (d *Doc) dumpKinds(writer io.Writer) error {
	return d.scan([]byte{kindPrefix}, func(key, val []byte) error {
		_, err := fmt.Fprintf(writer, "%s\t%c\n", rdx.IDFromBytes(key[1:]).String(), val[0])
		return err
	})
}

func (d *Doc) dumpEntries(writer io.Writer, prefix []byte) error {
	return d.scan(prefix, func(key, val []byte) error {
		cid := rdx.IDFromBytes(key[1:17])
		id, v, err := parseEntry(val)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(writer, "%s.%q\t%s\t%s\n", cid.String(), entryKeyName(key), id.String(), v.String())
		return err
	})
}

func (d *Doc) dumpElems(writer io.Writer, prefix []byte) error {
	return d.scan(prefix, func(key, val []byte) error {
		cid := rdx.IDFromBytes(key[1:17])
		anchor, v, dead, err := parseElem(val)
		if err != nil {
			return err
		}
		mark := ""
		if dead {
			mark = "\tX"
		}
		_, err = fmt.Fprintf(writer, "%s[%s]\t<%s\t%s%s\n", cid.String(), elemKeyID(key).String(), anchor.String(), v.String(), mark)
		return err
	})
}
