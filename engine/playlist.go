package engine

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// segment is one entry of a variant playlist with its presentation window resolved.
type segment struct {
	Sequence uint64
	URI      string
	Start    float64
	Duration float64
	Key      *keyInfo
}

func (s segment) End() float64 {
	return s.Start + s.Duration
}

type keyInfo struct {
	Method string
	URI    string
	IV     []byte
}

// variant is a parsed media playlist.
type variant struct {
	Segments       []segment
	TargetDuration float64
	Closed         bool
}

// segmentAt returns the segment whose window contains pos.
func (v *variant) segmentAt(pos float64) (segment, bool) {
	for _, s := range v.Segments {
		if s.Start <= pos+epsilon && pos < s.End()-epsilon {
			return s, true
		}
	}

	// Before the first segment, start from it.
	if len(v.Segments) > 0 && pos < v.Segments[0].Start {
		return v.Segments[0], true
	}

	return segment{}, false
}

const epsilon = 1e-3

// parseMaster decodes a master playlist into a ladder ordered as advertised.
func parseMaster(r io.Reader, base *url.URL) ([]level.QualityLevel, error) {
	playlist, kind, err := m3u8.DecodeFrom(r, false)
	if err != nil {
		return nil, err
	}

	if kind != m3u8.MASTER {
		return nil, fmt.Errorf("%w: expected master playlist", ErrUnexpectedList)
	}

	master := playlist.(*m3u8.MasterPlaylist)
	variants := lo.Filter(master.Variants, func(v *m3u8.Variant, _ int) bool {
		return v != nil && !v.Iframe && v.URI != ""
	})

	if len(variants) == 0 {
		return nil, ErrEmptyLadder
	}

	levels := make([]level.QualityLevel, len(variants))
	for i, v := range variants {
		width, height := parseResolution(v.Resolution)
		levels[i] = level.QualityLevel{
			Index:   i,
			Width:   width,
			Height:  height,
			Bitrate: int(v.Bandwidth),
			Codecs:  v.Codecs,
			URI:     resolve(base, v.URI),
		}
	}

	return levels, nil
}

// parseMedia decodes a variant playlist. Segment start times accumulate from zero.
func parseMedia(r io.Reader, base *url.URL) (*variant, error) {
	playlist, kind, err := m3u8.DecodeFrom(r, false)
	if err != nil {
		return nil, err
	}

	if kind != m3u8.MEDIA {
		return nil, fmt.Errorf("%w: expected media playlist", ErrUnexpectedList)
	}

	media := playlist.(*m3u8.MediaPlaylist)
	parsed := &variant{
		TargetDuration: media.TargetDuration,
		Closed:         media.Closed,
	}

	key := media.Key
	var start float64
	for _, s := range media.Segments {
		if s == nil {
			continue
		}

		if s.Key != nil {
			key = s.Key
		}

		parsed.Segments = append(parsed.Segments, segment{
			Sequence: s.SeqId,
			URI:      resolve(base, s.URI),
			Start:    start,
			Duration: s.Duration,
			Key:      keyFor(key, base),
		})
		start += s.Duration
	}

	return parsed, nil
}

func keyFor(key *m3u8.Key, base *url.URL) *keyInfo {
	if key == nil || key.Method == "" || strings.EqualFold(key.Method, "NONE") {
		return nil
	}

	info := &keyInfo{
		Method: strings.ToUpper(key.Method),
		URI:    resolve(base, key.URI),
	}

	if iv := strings.TrimPrefix(strings.TrimPrefix(key.IV, "0x"), "0X"); iv != "" {
		if decoded, err := hex.DecodeString(iv); err == nil {
			info.IV = decoded
		}
	}

	return info
}

func parseResolution(resolution string) (width, height mo.Option[int]) {
	w, h, ok := strings.Cut(strings.ToLower(resolution), "x")
	if !ok {
		return mo.None[int](), mo.None[int]()
	}

	if n, err := strconv.Atoi(w); err == nil {
		width = mo.Some(n)
	}

	if n, err := strconv.Atoi(h); err == nil {
		height = mo.Some(n)
	}

	return
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}

	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}

	return base.ResolveReference(parsed).String()
}
