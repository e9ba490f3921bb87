package spotify

import (
	"net/url"
	"strings"
)

// ParsePlaylistID 接受歌单链接、spotify:playlist: URI 或裸 id
func ParsePlaylistID(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(input, "spotify:playlist:"); ok {
		return rest
	}

	if strings.Contains(input, "open.spotify.com") {
		raw := input
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := 0; i < len(parts)-1; i++ {
			if parts[i] == "playlist" {
				return parts[i+1]
			}
		}
		return ""
	}

	return input
}
