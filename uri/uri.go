// Package uri implements RobinHood's backend URI grammar (spec §4.H):
// `rbh:<backend>[-<extension>]:<fsname>[#path|#[id]]`, parsed into a
// structured selector a plugin loader can act on without re-parsing.
package uri

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/id"
)

// SelectorKind distinguishes the three shapes a URI's fragment can take
// (spec §4.H/glossary): no selector, a path, or an id (FID or raw bytes).
type SelectorKind uint8

const (
	SelectorBare SelectorKind = iota
	SelectorPath
	SelectorID
)

// URI is the parsed form of an `rbh:` backend URI.
type URI struct {
	Backend   string // plugin name, e.g. "posix"
	Extension string // e.g. "lustre" in "posix-lustre"; empty if none

	Fsname string // required, non-empty (spec §3: "Empty <fsname> is invalid")

	Selector SelectorKind
	Path     string  // set when Selector == SelectorPath, percent-decoded
	FID      *id.FID // set when Selector == SelectorID and the fragment was FID-shaped
	RawID    []byte  // set when Selector == SelectorID and the fragment was raw percent-decoded bytes
}

// Parse parses s per spec §4.H/§3: scheme must be "rbh"; the path component
// carries "<backend>[-<extension>]:<fsname>"; the fragment, if present,
// selects a path or id within that filesystem.
func Parse(s string) (*URI, error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed uri %q: %v", errs.ErrInvalid, s, err)
	}
	if parsed.Scheme != "rbh" {
		return nil, fmt.Errorf("%w: uri scheme must be \"rbh\", got %q", errs.ErrInvalid, parsed.Scheme)
	}

	// url.Parse puts "rbh:backend:fsname#frag" entirely into Opaque when
	// there is no "//authority" (our grammar never has one).
	body := parsed.Opaque
	if body == "" {
		body = strings.TrimPrefix(parsed.Path, "/")
	}

	backendAndExt, fsname, ok := strings.Cut(body, ":")
	if !ok || fsname == "" {
		return nil, fmt.Errorf("%w: uri %q is missing a non-empty fsname", errs.ErrInvalid, s)
	}

	backendName, ext, _ := strings.Cut(backendAndExt, "-")

	u := &URI{Backend: backendName, Extension: ext, Fsname: fsname}

	frag := parsed.EscapedFragment()
	if frag == "" {
		return u, nil
	}

	if strings.HasPrefix(frag, "[") && strings.HasSuffix(frag, "]") {
		inner := frag[1 : len(frag)-1]
		if strings.Count(inner, ":") == 2 {
			fid, err := id.ParseFIDString(inner)
			if err != nil {
				return nil, err
			}
			u.Selector = SelectorID
			u.FID = &fid
			return u, nil
		}
		raw, err := url.PathUnescape(inner)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed percent-encoded id in uri %q: %v", errs.ErrInvalid, s, err)
		}
		u.Selector = SelectorID
		u.RawID = []byte(raw)
		return u, nil
	}

	path, err := url.PathUnescape(frag)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed percent-encoded path in uri %q: %v", errs.ErrInvalid, s, err)
	}
	u.Selector = SelectorPath
	u.Path = path
	return u, nil
}

// escapePath percent-encodes each '/'-delimited segment independently,
// leaving the separators themselves literal so the result still
// round-trips through the segment-at-a-time walk backend.FsentryFromPath
// performs (spec §4.G.1).
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// String unparses u back into its canonical textual form (spec §3: "for
// any u, if parse(u) succeeds then unparse(parse(u)) parses to the same
// structured value").
func (u *URI) String() string {
	var b strings.Builder
	b.WriteString("rbh:")
	b.WriteString(u.Backend)
	if u.Extension != "" {
		b.WriteByte('-')
		b.WriteString(u.Extension)
	}
	b.WriteByte(':')
	b.WriteString(u.Fsname)

	switch u.Selector {
	case SelectorPath:
		b.WriteByte('#')
		b.WriteString(escapePath(u.Path))
	case SelectorID:
		b.WriteString("#[")
		if u.FID != nil {
			b.WriteString(u.FID.String())
		} else {
			b.WriteString(url.PathEscape(string(u.RawID)))
		}
		b.WriteByte(']')
	}
	return b.String()
}
