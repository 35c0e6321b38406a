// Package hls plays HLS sources for the player: it fetches and parses the
// manifest and picks the variant the player binds to its media surface
package hls

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidManifest indicates the body is not an HLS playlist
var ErrInvalidManifest = errors.New("invalid HLS manifest")

// Variant is one stream of a master playlist
type Variant struct {
	URI       string
	Bandwidth int
	Width     int
	Height    int
	Codecs    string
}

// Playlist is a parsed master or media playlist
type Playlist struct {
	Master   bool
	Variants []Variant // master only

	// media only
	Segments       int
	TotalDuration  time.Duration
	TargetDuration time.Duration
	IsVOD          bool // #EXT-X-PLAYLIST-TYPE:VOD or #EXT-X-ENDLIST
}

// Parse reads a master or media playlist
func Parse(body string) (*Playlist, error) {
	scanner := bufio.NewScanner(strings.NewReader(body))
	pl := &Playlist{}

	var (
		sawHeader    bool
		nextDuration time.Duration
		hasExtinf    bool
		pending      *Variant
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawHeader {
			if line != "#EXTM3U" {
				return nil, fmt.Errorf("%w: missing #EXTM3U header", ErrInvalidManifest)
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			v := Variant{Codecs: attrs["CODECS"]}
			if bw, ok := attrs["BANDWIDTH"]; ok {
				n, err := strconv.Atoi(bw)
				if err != nil {
					return nil, fmt.Errorf("%w: invalid BANDWIDTH %q", ErrInvalidManifest, bw)
				}
				v.Bandwidth = n
			}
			if res, ok := attrs["RESOLUTION"]; ok {
				v.Width, v.Height = parseResolution(res)
			}
			pl.Master = true
			pending = &v

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			secs, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			if err != nil {
				return nil, fmt.Errorf("%w: invalid target duration", ErrInvalidManifest)
			}
			pl.TargetDuration = time.Duration(secs) * time.Second

		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:VOD"), line == "#EXT-X-ENDLIST":
			pl.IsVOD = true

		case strings.HasPrefix(line, "#EXTINF:"):
			// Format: #EXTINF:10.000,title
			durPart := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(durPart, ","); idx != -1 {
				durPart = durPart[:idx]
			}
			secs, err := strconv.ParseFloat(durPart, 64)
			if err != nil || secs < 0 {
				return nil, fmt.Errorf("%w: invalid EXTINF duration %q", ErrInvalidManifest, durPart)
			}
			nextDuration = time.Duration(secs * float64(time.Second))
			hasExtinf = true

		case strings.HasPrefix(line, "#"):
			// Other tags are not needed for variant selection

		default:
			// URI line
			if pending != nil {
				pending.URI = line
				pl.Variants = append(pl.Variants, *pending)
				pending = nil
				continue
			}
			if !hasExtinf {
				return nil, fmt.Errorf("%w: segment %q without EXTINF", ErrInvalidManifest, line)
			}
			pl.Segments++
			pl.TotalDuration += nextDuration
			nextDuration = 0
			hasExtinf = false
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidManifest)
	}
	if pl.Master && len(pl.Variants) == 0 {
		return nil, fmt.Errorf("%w: master playlist without variants", ErrInvalidManifest)
	}
	if pl.Master && pl.Segments > 0 {
		return nil, fmt.Errorf("%w: playlist mixes variants and segments", ErrInvalidManifest)
	}
	return pl, nil
}

// Duration returns the total duration in seconds for VOD playlists and 0 otherwise
func (p *Playlist) Duration() float64 {
	if p.Master || !p.IsVOD {
		return 0
	}
	return p.TotalDuration.Seconds()
}

// SelectVariant returns the highest-bandwidth variant not above maxBandwidth.
// A zero cap selects the highest overall; if every variant is above the cap
// the lowest is used
func SelectVariant(variants []Variant, maxBandwidth int) (Variant, bool) {
	if len(variants) == 0 {
		return Variant{}, false
	}
	sorted := append([]Variant(nil), variants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bandwidth > sorted[j].Bandwidth
	})
	if maxBandwidth <= 0 {
		return sorted[0], true
	}
	for _, v := range sorted {
		if v.Bandwidth <= maxBandwidth {
			return v, true
		}
	}
	return sorted[len(sorted)-1], true
}

// parseAttributes splits an attribute list, honouring quoted values that contain commas
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = s[eq+1:]

		var val string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				val, s = s[1:], ""
			} else {
				val, s = s[1:end+1], s[end+2:]
			}
			if i := strings.IndexByte(s, ','); i >= 0 {
				s = s[i+1:]
			} else {
				s = ""
			}
		} else if i := strings.IndexByte(s, ','); i >= 0 {
			val, s = s[:i], s[i+1:]
		} else {
			val, s = s, ""
		}
		attrs[strings.ToUpper(key)] = strings.TrimSpace(val)
	}
	return attrs
}

func parseResolution(s string) (int, int) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0
	}
	width, err1 := strconv.Atoi(w)
	height, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return width, height
}
