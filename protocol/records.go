package protocol

// Records is a batch of TLV records; ops travel and get stored
// as such batches.
type Records [][]byte

func (recs Records) TotalLen() (total int64) {
	for _, r := range recs {
		total += int64(len(r))
	}
	return
}

// Join concatenates the batch into one buffer.
func (recs Records) Join() []byte {
	return Concat(recs...)
}

// Split cuts a buffer into whole records. A trailing fragment
// is reported as ErrIncomplete, garbage as ErrBadRecord.
func Split(data []byte) (recs Records, err error) {
	for len(data) > 0 {
		lit, hlen, blen := ProbeHeader(data)
		if lit == '-' {
			return recs, ErrBadRecord
		}
		if lit == 0 || hlen+blen > len(data) {
			return recs, ErrIncomplete
		}
		recs = append(recs, data[:hlen+blen])
		data = data[hlen+blen:]
	}
	return
}
