package wall

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// legacyAxisTemplate is used for cameras registered without an explicit RTSP
// template (older Axis-style definitions).
const legacyAxisTemplate = "rtsp://{login}:{password}@{ip}/axis-media/media.amp"

// ResolveStreamURI builds the RTSP URI for a camera adapted to the target
// layout density: denser layouts get lower-resolution stream variants. The
// server is the single source of truth for this mapping; the REST surface and
// display nodes both query it here.
func ResolveStreamURI(c *Camera, layout Layout) string {
	tmpl := c.RTSPTemplate
	if tmpl == "" {
		uri := expandTemplate(legacyAxisTemplate, legacyParams(c))
		uri = stripEmptyCredentials(c, uri)
		if res := resolutionForLayout(c, layout); res != "" {
			uri += "?resolution=" + res
		}
		return uri
	}

	params := baseParams(c)
	applyLayoutParams(params, c, layout)
	uri := expandTemplate(tmpl, params)
	return stripEmptyCredentials(c, uri)
}

func legacyParams(c *Camera) map[string]string {
	return map[string]string{
		"login":    c.Login,
		"password": c.Password,
		"ip":       c.IP,
	}
}

func baseParams(c *Camera) map[string]string {
	port := c.Port
	if port == 0 {
		port = 554
	}
	channel := c.Channel
	if channel == 0 {
		channel = 1
	}
	stream := c.Stream
	if stream == 0 {
		stream = 1
	}
	resolution := c.Resolution
	if resolution == "" {
		resolution = "640x480"
	}
	fps := c.FPS
	if fps == 0 {
		fps = 15
	}
	quality := c.Quality
	if quality == "" {
		quality = "main"
	}
	login := c.Login
	if login == "" && c.Password != "" {
		login = "admin"
	}
	return map[string]string{
		"login":      login,
		"password":   c.Password,
		"ip":         c.IP,
		"port":       strconv.Itoa(port),
		"channel":    strconv.Itoa(channel),
		"stream":     strconv.Itoa(stream),
		"resolution": resolution,
		"fps":        strconv.Itoa(fps),
		"quality":    quality,
	}
}

// applyLayoutParams adapts stream parameters to the screen layout. A camera
// may declare explicit per-layout overrides; otherwise 1x1 selects the main
// stream and high quality while 2x2/3x3 drop to the sub stream with a
// resolution chosen from the camera's capability hints.
func applyLayoutParams(params map[string]string, c *Camera, layout Layout) {
	if ov, ok := c.LayoutOverrides[layout]; ok {
		if ov.Channel != 0 {
			params["channel"] = strconv.Itoa(ov.Channel)
		}
		if ov.Stream != 0 {
			params["stream"] = strconv.Itoa(ov.Stream)
		}
		if ov.Quality != "" {
			params["quality"] = ov.Quality
		}
		if ov.Resolution != "" {
			params["resolution"] = ov.Resolution
		}
		if ov.FPS != 0 {
			params["fps"] = strconv.Itoa(ov.FPS)
		}
		return
	}

	switch layout {
	case Layout1x1:
		params["quality"] = "main"
		params["stream"] = "1"
		params["channel"] = "1"
	default: // 2x2, 3x3
		params["quality"] = "sub"
		params["stream"] = "2"
		params["channel"] = "2"
	}
	if res := resolutionForLayout(c, layout); res != "" {
		params["resolution"] = res
	}
}

// resolutionForLayout picks the best stream resolution from the camera's
// supported list for the given layout density:
//
//	1x1: highest resolution not above 1080p
//	2x2: highest not above 720p
//	3x3: exactly 450p if available, else highest not above 450p
//
// Falls back to the lowest supported resolution when nothing fits, and to
// the camera's configured resolution when no capability hints exist.
func resolutionForLayout(c *Camera, layout Layout) string {
	type res struct {
		w, h int
		s    string
	}
	var candidates []res
	for _, s := range c.SupportedResolutions {
		w, h, ok := parseResolution(s)
		if !ok {
			continue
		}
		candidates = append(candidates, res{w: w, h: h, s: s})
	}
	if len(candidates) == 0 {
		return c.Resolution
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].h > candidates[j].h })

	maxHeight := 1080
	switch layout {
	case Layout2x2:
		maxHeight = 720
	case Layout3x3:
		for _, r := range candidates {
			if r.h == 450 {
				return r.s
			}
		}
		maxHeight = 450
	}

	for _, r := range candidates {
		if r.h <= maxHeight {
			return r.s
		}
	}
	return candidates[len(candidates)-1].s
}

func parseResolution(s string) (w, h int, ok bool) {
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		return 0, 0, false
	}
	return w, h, true
}

// expandTemplate substitutes {name} placeholders. Unknown placeholders are
// left in place so a misconfigured template is visible in logs rather than
// silently collapsed.
func expandTemplate(tmpl string, params map[string]string) string {
	out := tmpl
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// stripEmptyCredentials removes the ":@" left behind by templates when the
// camera has no login or password configured.
func stripEmptyCredentials(c *Camera, uri string) string {
	if c.Login != "" || c.Password != "" {
		return uri
	}
	uri = strings.ReplaceAll(uri, ":@", "")
	return strings.ReplaceAll(uri, "://@", "://")
}
