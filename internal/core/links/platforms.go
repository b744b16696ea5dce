package links

import (
	"net/url"
	"regexp"
	"strings"
)

// id shapes accepted per platform; anything else never reaches an upstream query
var (
	youtubeIDRe     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	youtubeHandleRe = regexp.MustCompile(`^(@|user:)[a-z0-9._-]{1,100}$`)
	instagramNameRe = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)
	facebookIDRe    = regexp.MustCompile(`^[A-Za-z0-9.\-]+$`)
)

var platformLabels = map[Platform]string{YouTube: "YouTube", Instagram: "Instagram", Facebook: "Facebook"}

// checkID rejects targets whose id does not look like one the platform issues
func checkID(t Target) error {
	var ok bool
	switch t.Platform {
	case YouTube:
		ok = youtubeIDRe.MatchString(t.ID) || youtubeHandleRe.MatchString(t.ID)
	case Instagram:
		ok = instagramNameRe.MatchString(t.ID)
	case Facebook:
		ok = facebookIDRe.MatchString(t.ID)
	}
	if !ok {
		return invalid(platformLabels[t.Platform] + " link has a malformed id")
	}
	return nil
}

func youtubeShort(segs []string) (Target, error) {
	if len(segs) == 0 {
		return Target{}, invalid(MsgUnsupported)
	}
	return Target{Platform: YouTube, Kind: KindVideo, ID: segs[0]}, nil
}

func youtube(u *url.URL, segs []string) (Target, error) {
	if len(segs) > 0 && strings.EqualFold(segs[0], "watch") {
		id := u.Query().Get("v")
		if id == "" {
			return Target{}, invalid("YouTube watch link has no video id")
		}
		return Target{Platform: YouTube, Kind: KindVideo, ID: id}, nil
	}
	if len(segs) == 0 {
		return Target{}, invalid(MsgUnsupported)
	}
	head := segs[0]
	switch {
	case strings.HasPrefix(head, "@") && len(head) > 1:
		return Target{Platform: YouTube, Kind: KindChannel, ID: strings.ToLower(head)}, nil
	case len(segs) < 2:
		return Target{}, invalid(MsgUnsupported)
	}
	switch strings.ToLower(head) {
	case "shorts", "live", "embed", "v":
		return Target{Platform: YouTube, Kind: KindVideo, ID: segs[1]}, nil
	case "channel":
		return Target{Platform: YouTube, Kind: KindChannel, ID: segs[1]}, nil
	case "c":
		// custom urls resolve like handles
		return Target{Platform: YouTube, Kind: KindChannel, ID: "@" + strings.ToLower(segs[1])}, nil
	case "user":
		return Target{Platform: YouTube, Kind: KindChannel, ID: "user:" + strings.ToLower(segs[1])}, nil
	}
	return Target{}, invalid(MsgUnsupported)
}

var instagramReserved = map[string]bool{
	"p": true, "reel": true, "reels": true, "tv": true, "explore": true, "stories": true,
	"accounts": true, "direct": true, "about": true, "developer": true, "legal": true,
}

func instagram(segs []string) (Target, error) {
	if len(segs) == 0 {
		return Target{}, invalid(MsgUnsupported)
	}
	name := strings.TrimPrefix(strings.ToLower(segs[0]), "@")
	if name == "" || instagramReserved[name] {
		return Target{}, invalid("Instagram links must point at a profile")
	}
	return Target{Platform: Instagram, Kind: KindProfile, ID: name}, nil
}

var facebookReserved = map[string]bool{
	"watch": true, "groups": true, "events": true, "photo": true, "photo.php": true, "share": true,
	"story.php": true, "marketplace": true, "gaming": true, "login": true, "help": true, "hashtag": true,
}

func facebook(u *url.URL, segs []string) (Target, error) {
	if len(segs) == 0 {
		return Target{}, invalid(MsgUnsupported)
	}
	head := strings.ToLower(segs[0])
	switch {
	case head == "profile.php":
		if id := u.Query().Get("id"); id != "" {
			return Target{Platform: Facebook, Kind: KindProfile, ID: id}, nil
		}
		return Target{}, invalid("Facebook profile link has no id")
	case head == "pages" && len(segs) >= 3:
		// /pages/<name>/<numeric id>
		return Target{Platform: Facebook, Kind: KindProfile, ID: segs[2]}, nil
	case facebookReserved[head]:
		return Target{}, invalid("Facebook links must point at a page")
	}
	return Target{Platform: Facebook, Kind: KindProfile, ID: head}, nil
}
