package cms

import "hash/fnv"

// iccHeaderSkipRanges lists the byte ranges of an ICC profile header that
// are excluded from the cache key. Only the header fields that affect the
// color math are hashed (version, device class, color space and PCS at
// 8..24; rendering intent and PCS illuminant at 64..80), plus the tag
// table and tag data from byte 128 on. Everything else (size, CMM, date,
// platform, flags, manufacturer/model, attributes, creator, profile ID,
// reserved bytes) is skipped, so two profiles produced by different tools
// from the same color data hit the same cache slot. Offsets per
// ICC.1:2010 §7.2.
var iccHeaderSkipRanges = [][2]int{
	{0, 8},    // profile size, preferred CMM type
	{24, 64},  // date/time created through device attributes
	{80, 128}, // creator, profile ID, reserved
}

// Key is a cache key for a compiled transform: the profile Kind plus a
// content hash.
type Key struct {
	Kind Kind
	Hash uint64
}

// KeyFor computes the cache key for a raw profile payload. For ICC
// profiles, the volatile header ranges are skipped; other kinds hash their
// full (much smaller) payload directly.
func KeyFor(kind Kind, payload []byte) Key {
	h := fnv.New64a()
	if kind == KindICC {
		last := 0
		for _, r := range iccHeaderSkipRanges {
			lo, hi := r[0], r[1]
			if lo > len(payload) {
				continue
			}
			if hi > len(payload) {
				hi = len(payload)
			}
			h.Write(payload[last:lo])
			last = hi
		}
		h.Write(payload[last:])
	} else {
		h.Write(payload)
	}
	return Key{Kind: kind, Hash: h.Sum64()}
}
