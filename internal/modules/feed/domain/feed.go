package domain

// FeedConfig represents RSS/Atom feed configuration
type FeedConfig struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	// SiteURL is the public base URL posts and media are served under
	SiteURL string `json:"site_url"`
	// MediaDir is where media files live on disk, used for enclosure sizes
	MediaDir string `json:"media_dir"`
	// Placeholder is the media reference that means "no media"
	Placeholder string `json:"placeholder"`
}
