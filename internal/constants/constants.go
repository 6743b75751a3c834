// Package constants defines application-wide constants and default values.
package constants

const (
	AppName    = "moviematch"
	AppVersion = "1.0.0"

	// Default configuration values
	DefaultPort       = "3001"
	DefaultLogLevel   = "info"
	DefaultLanguage   = "ja-JP"
	DefaultSourceMode = "direct"

	// TMDB endpoints
	TMDBBaseURL  = "https://api.themoviedb.org/3"
	ImageBaseURL = "https://image.tmdb.org/t/p/w500"
	ImageHost    = "image.tmdb.org"

	// Discover query shared by both catalogs
	DiscoverSortBy       = "vote_count.desc"
	DiscoverMinVoteCount = 100
	AnimeGenreID         = "16"

	// Cache settings
	DefaultCacheSize      = 1000
	DefaultCacheTTL       = 24 // hours
	DefaultImageCacheSize = 200
	DefaultPageCacheTTL   = 12 // hours

	// Rate limiting
	TMDBRateLimit   = 20 // requests per second
	TMDBRateBurst   = 5
	ClientRateLimit = 10 // requests per second per IP
	ClientRateBurst = 30
)

// Source modes
const (
	SourceModeDirect = "direct"
	SourceModeProxy  = "proxy"
)

// DefaultAllowedOrigins are the front-end origins served by the CORS middleware.
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"https://swappy-react3.vercel.app",
}
