package tnp

import (
	"encoding/binary"
	"strconv"

	"github.com/google/uuid"
	"github.com/ib-77/l1tnp/pkg/event"
)

var seedNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("l1tnp/deterministic_seed"))

// DeterministicSeed derives a per-event seed from the event identity and its
// raw muon multiplicity. The same event gets the same seed however the
// dataset is chunked.
func DeterministicSeed(ev *event.Event) uint64 {
	key := make([]byte, 0, 64)
	key = strconv.AppendUint(key, uint64(ev.Run), 10)
	key = append(key, ':')
	key = strconv.AppendUint(key, uint64(ev.LuminosityBlock), 10)
	key = append(key, ':')
	key = strconv.AppendUint(key, ev.EventID, 10)
	key = append(key, ':')
	key = strconv.AppendInt(key, int64(len(ev.Muons)), 10)

	id := uuid.NewSHA1(seedNamespace, key)
	return binary.BigEndian.Uint64(id[:8])
}
