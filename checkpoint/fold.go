package checkpoint

import "github.com/viant/fusio-manifest/segment"

// Fold applies segments' records in ascending seq / staged order into a
// fresh payload, starting from an optional prior payload (nil for "from
// scratch"). Records are applied strictly in that order so a later write to
// the same key always wins over an earlier one.
func Fold(prior Payload, segments []*segment.Segment) Payload {
	out := make(Payload, len(prior))
	for k, v := range prior {
		out[k] = v
	}
	for _, seg := range segments {
		for _, r := range seg.Records {
			switch r.Op {
			case segment.OpPut:
				out[string(r.Key)] = Entry{Op: segment.OpPut, Value: r.Value}
			case segment.OpDel:
				out[string(r.Key)] = Entry{Op: segment.OpDel}
			}
		}
	}
	return out
}
