package downloader

// PlayerClient is a named yt-dlp extraction identity. Which client the
// downloader presents itself as affects what the platform lets it fetch.
type PlayerClient string

const (
	ClientMobile     PlayerClient = "mobile"
	ClientWeb        PlayerClient = "web"
	ClientAndroid    PlayerClient = "android"
	ClientIOS        PlayerClient = "ios"
	ClientMWeb       PlayerClient = "mweb"
	ClientTVEmbedded PlayerClient = "tv_embedded"
	ClientTV         PlayerClient = "tv"
)

// Client orderings are fixed. With cookies, clients known to honor
// cookie-based auth come first; without, the general-purpose order applies.
var (
	cookieClientOrder = []PlayerClient{
		ClientMobile, ClientWeb, ClientIOS, ClientMWeb,
		ClientAndroid, ClientTVEmbedded, ClientTV,
	}
	defaultClientOrder = []PlayerClient{
		ClientMobile, ClientWeb, ClientAndroid, ClientIOS,
		ClientTVEmbedded, ClientMWeb, ClientTV,
	}
)

// ClientOrder returns the sequence of player clients to attempt for one
// sweep. The ordering depends only on cookie availability.
func ClientOrder(withCookies bool) []PlayerClient {
	if withCookies {
		return append([]PlayerClient(nil), cookieClientOrder...)
	}
	return append([]PlayerClient(nil), defaultClientOrder...)
}
