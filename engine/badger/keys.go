package badger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/trellisdb/trellis/engine"
)

// Key layout. Numeric key parts are big-endian so prefix scans walk them in
// order.
//
//	n:<id8>               node record (msgpack: type, key)
//	p:<id8><prop4>        property value
//	o:<src8><type4><dst8> out edge, value is the float64 weight bits
//	i:<dst8><type4><src8> in edge, mirror of the matching out key
//	k:<type4><key>        key index entry, value is the node id
//	d:<kind>:<name>       dictionary entry, value is the interned id
//	m:<name>              sequences and counters
const (
	prefixNode = "n:"
	prefixProp = "p:"
	prefixOut  = "o:"
	prefixIn   = "i:"
	prefixKey  = "k:"
	prefixDict = "d:"
	prefixMeta = "m:"
)

const (
	dictNodeType = 'n'
	dictEdgeType = 'e'
	dictPropKey  = 'p'
)

// Dictionary entries are never deleted, so the type and prop-key sequences
// double as their counts.
const (
	seqNode     = "seq:node"
	seqNodeType = "seq:ntype"
	seqEdgeType = "seq:etype"
	seqPropKey  = "seq:pkey"
	cntNodes    = "cnt:nodes"
	cntEdges    = "cnt:edges"
)

func nodeKey(id engine.NodeID) []byte {
	k := make([]byte, 0, 2+8)
	k = append(k, prefixNode...)
	return binary.BigEndian.AppendUint64(k, uint64(id))
}

func propKey(id engine.NodeID, key engine.PropKeyID) []byte {
	k := make([]byte, 0, 2+8+4)
	k = append(k, prefixProp...)
	k = binary.BigEndian.AppendUint64(k, uint64(id))
	return binary.BigEndian.AppendUint32(k, uint32(key))
}

func propPrefix(id engine.NodeID) []byte {
	k := make([]byte, 0, 2+8)
	k = append(k, prefixProp...)
	return binary.BigEndian.AppendUint64(k, uint64(id))
}

// edgeKey builds an adjacency key under prefixOut or prefixIn. The first node
// is the one the key is indexed by.
func edgeKey(prefix string, a engine.NodeID, typ engine.EdgeTypeID, b engine.NodeID) []byte {
	k := make([]byte, 0, 2+8+4+8)
	k = append(k, prefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(a))
	k = binary.BigEndian.AppendUint32(k, uint32(typ))
	return binary.BigEndian.AppendUint64(k, uint64(b))
}

func edgePrefix(prefix string, a engine.NodeID) []byte {
	k := make([]byte, 0, 2+8)
	k = append(k, prefix...)
	return binary.BigEndian.AppendUint64(k, uint64(a))
}

func edgeTypePrefix(prefix string, a engine.NodeID, typ engine.EdgeTypeID) []byte {
	k := make([]byte, 0, 2+8+4)
	k = append(k, prefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(a))
	return binary.BigEndian.AppendUint32(k, uint32(typ))
}

// peerID extracts the trailing node id from an adjacency key.
func peerID(key []byte) engine.NodeID {
	return engine.NodeID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

func keyIndexKey(typeID engine.NodeTypeID, key string) []byte {
	k := make([]byte, 0, 2+4+len(key))
	k = append(k, prefixKey...)
	k = binary.BigEndian.AppendUint32(k, uint32(typeID))
	return append(k, key...)
}

func dictKey(kind byte, name string) []byte {
	k := make([]byte, 0, 4+len(name))
	k = append(k, prefixDict...)
	k = append(k, kind, ':')
	return append(k, name...)
}

func metaKey(name string) []byte {
	return append([]byte(prefixMeta), name...)
}

func encodeUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func decodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func encodeUint32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func decodeUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func encodeWeight(w float64) []byte {
	return encodeUint64(math.Float64bits(w))
}

func decodeWeight(b []byte) float64 {
	return math.Float64frombits(decodeUint64(b))
}

// nodeRecord is the stored identity of a node. Properties live under their
// own keys so lookups stay sparse.
type nodeRecord struct {
	Type uint32 `msgpack:"t"`
	Key  string `msgpack:"k"`
}

func encodeRecord(rec nodeRecord) ([]byte, error) {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding node record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (nodeRecord, error) {
	var rec nodeRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nodeRecord{}, fmt.Errorf("decoding node record: %w", err)
	}
	return rec, nil
}

// readCounter reads a sequence or counter; an unset counter is zero.
func readCounter(txn *badger.Txn, name string) (uint64, error) {
	item, err := txn.Get(metaKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var v uint64
	err = item.Value(func(val []byte) error {
		v = decodeUint64(val)
		return nil
	})
	return v, err
}

// nextSeq increments and returns the named sequence. Writers are serialized
// by the engine mutex, so read-modify-write inside one transaction is safe.
func nextSeq(txn *badger.Txn, name string) (uint64, error) {
	cur, err := readCounter(txn, name)
	if err != nil {
		return 0, err
	}

	cur++
	if err := txn.Set(metaKey(name), encodeUint64(cur)); err != nil {
		return 0, err
	}
	return cur, nil
}

func addCounter(txn *badger.Txn, name string, delta int64) error {
	cur, err := readCounter(txn, name)
	if err != nil {
		return err
	}
	return txn.Set(metaKey(name), encodeUint64(uint64(int64(cur)+delta)))
}

// validID reports whether id falls inside the allocated range of the named
// sequence.
func validID(txn *badger.Txn, seq string, id uint32) (bool, error) {
	if id == 0 {
		return false, nil
	}

	cur, err := readCounter(txn, seq)
	if err != nil {
		return false, err
	}
	return uint64(id) <= cur, nil
}
