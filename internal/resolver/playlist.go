package resolver

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// A playlist entry starts at "http" and runs to the last character on its
// line that is not whitespace (nor a quote, for M3U).
var (
	m3uURLRegex = regexp.MustCompile(`http.*[^\r\n\t "]`)
	plsURLRegex = regexp.MustCompile(`http.*[^\r\n\t ]`)
)

var mmsSchemes = []string{"mmsh", "mmst", "rtsp"}

// ParseM3U extracts every URL in an M3U body, in document order.
func ParseM3U(body []byte) []string {
	return findAll(m3uURLRegex, body)
}

// ParsePLS extracts every URL in a PLS body, in document order.
func ParsePLS(body []byte) []string {
	return findAll(plsURLRegex, body)
}

func findAll(re *regexp.Regexp, body []byte) []string {
	matches := re.FindAll(body, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, string(m))
	}
	return out
}

type xspfPlaylist struct {
	Tracks []xspfTrack `xml:"trackList>track"`
}

type xspfTrack struct {
	Locations []string `xml:"location"`
}

// ParseXSPF returns the first location of every track, in document order.
func ParseXSPF(body []byte) ([]string, error) {
	var pl xspfPlaylist
	dec := xml.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&pl); err != nil {
		return nil, fmt.Errorf("decode xspf: %w", err)
	}
	out := make([]string, 0, len(pl.Tracks))
	for _, tr := range pl.Tracks {
		if len(tr.Locations) == 0 {
			continue
		}
		if loc := strings.TrimSpace(tr.Locations[0]); loc != "" {
			out = append(out, loc)
		}
	}
	return out, nil
}

// ExpandMMS rewrites an mms:// URL into its mmsh, mmst and rtsp equivalents.
// It returns nil for any other scheme.
func ExpandMMS(rawURL string) []string {
	u := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(u, "mms://") {
		return nil
	}
	out := make([]string, 0, len(mmsSchemes))
	for _, scheme := range mmsSchemes {
		out = append(out, scheme+u[len("mms"):])
	}
	return out
}
