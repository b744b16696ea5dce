package content

import "audiencepulse/internal/core/links"

// Limits are the sampling caps of one collection
type Limits struct {
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
}

// Sampling bounds
const (
	DefaultComments = 1000
	MaxComments     = 1000
)

type postRange struct{ def, lo, hi int }

var postRanges = map[links.Platform]postRange{
	links.Instagram: {def: 12, lo: 10, hi: 15},
	links.Facebook:  {def: 12, lo: 10, hi: 15},
	links.YouTube:   {def: 8, lo: 5, hi: 10},
}

// DefaultLimits returns the default caps for p
func DefaultLimits(p links.Platform) Limits {
	return Limits{Posts: postRanges[p].def, Comments: DefaultComments}
}

// For returns l fitted to p: zero values take the platform default and
// everything else is clamped into the platform's range
func (l Limits) For(p links.Platform) Limits {
	r, ok := postRanges[p]
	if !ok {
		return l
	}
	out := l
	switch {
	case out.Posts <= 0:
		out.Posts = r.def
	case out.Posts < r.lo:
		out.Posts = r.lo
	case out.Posts > r.hi:
		out.Posts = r.hi
	}
	switch {
	case out.Comments <= 0:
		out.Comments = DefaultComments
	case out.Comments > MaxComments:
		out.Comments = MaxComments
	}
	return out
}
