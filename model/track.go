package model

// Track represents a catalog track. Immutable once fetched.
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artist      string   `json:"artist"`    // primary artist
	Featuring   []string `json:"featuring"` // remaining credited artists
	Cover       string   `json:"cover"`
	ReleaseDate string   `json:"releaseDate"`
	Popularity  int      `json:"popularity"` // larger = more popular
	PreviewURL  string   `json:"previewUrl,omitempty"`
}

// PlaylistInfo 歌单基础信息（仅用于展示）
type PlaylistInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	Image       string `json:"image"`
	TotalTracks int    `json:"totalTracks"`
}

// TrackIDs returns the ids of tracks in order.
func TrackIDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
