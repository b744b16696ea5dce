// Package links resolves social media links into analysis targets and fingerprints target sets
package links

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"

	perr "audiencepulse/internal/platform/errors"
)

// Platform names a supported social network
type Platform string

// Supported platforms
const (
	Instagram Platform = "instagram"
	Facebook  Platform = "facebook"
	YouTube   Platform = "youtube"
)

// Platforms lists every supported platform in a stable order
func Platforms() []Platform { return []Platform{Instagram, Facebook, YouTube} }

// Valid reports whether p is a supported platform
func (p Platform) Valid() bool {
	switch p {
	case Instagram, Facebook, YouTube:
		return true
	}
	return false
}

// Kind is what a link points at
type Kind string

// Target kinds
const (
	KindProfile Kind = "profile"
	KindChannel Kind = "channel"
	KindVideo   Kind = "video"
)

// Target is one resolved (platform, kind, id) triple.
// YouTube channel ids are either a raw channel id ("UC..."), a handle ("@name")
// or a legacy username ("user:name")
type Target struct {
	Platform Platform `json:"platform"`
	Kind     Kind     `json:"kind"`
	ID       string   `json:"id"`
	Link     string   `json:"link"`
}

// Key identifies the target independent of how it was linked
func (t Target) Key() string {
	return string(t.Platform) + ":" + string(t.Kind) + ":" + t.ID
}

// Messages surfaced for links that cannot be classified
const (
	MsgInvalidLink = "Invalid link"
	MsgUnsupported = "Unknown or unsupported link type"
)

func invalid(msg string) error { return perr.New(perr.ErrorCodeInvalidArgument, msg) }

// Resolve classifies a single link
func Resolve(link string) (Target, error) {
	raw := strings.TrimSpace(link)
	if raw == "" {
		return Target{}, invalid(MsgInvalidLink)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, invalid(MsgInvalidLink)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Target{}, invalid(MsgInvalidLink)
	}
	segs := segments(u.Path)

	var t Target
	switch {
	case onDomain(host, "youtu.be"):
		t, err = youtubeShort(segs)
	case onDomain(host, "youtube.com"):
		t, err = youtube(u, segs)
	case onDomain(host, "instagram.com"):
		t, err = instagram(segs)
	case onDomain(host, "facebook.com"), onDomain(host, "fb.com"):
		t, err = facebook(u, segs)
	default:
		return Target{}, invalid(MsgUnsupported)
	}
	if err != nil {
		return Target{}, err
	}
	if err := checkID(t); err != nil {
		return Target{}, err
	}
	t.Link = strings.TrimSpace(link)
	return t, nil
}

// Resolution is the outcome of resolving a request's links
type Resolution struct {
	Targets    []Target `json:"targets"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// ResolveAll resolves links in order and drops links that resolve to an already seen target.
// The first unresolvable link fails the whole set, tagged with its position
func ResolveAll(links []string) (Resolution, error) {
	if len(links) == 0 {
		return Resolution{}, perr.WithField(invalid("at least one link is required"), "links")
	}
	var res Resolution
	seen := make(map[string]struct{}, len(links))
	for i, l := range links {
		t, err := Resolve(l)
		if err != nil {
			return Resolution{}, perr.WithField(err, "links["+strconv.Itoa(i)+"]")
		}
		if _, dup := seen[t.Key()]; dup {
			res.Duplicates = append(res.Duplicates, t.Link)
			continue
		}
		seen[t.Key()] = struct{}{}
		res.Targets = append(res.Targets, t)
	}
	return res, nil
}

// Fingerprint is a stable id for an unordered set of targets
func Fingerprint(targets []Target) string {
	keys := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		k := t.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}

func onDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
