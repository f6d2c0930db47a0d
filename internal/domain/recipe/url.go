package recipe

import "net/url"

// NormalizeURL reduces a video URL to its identity form: scheme, host and
// path only. TikTok share links carry tracking query parameters that vary
// per share, so query and fragment are dropped before the URL is used as
// a lookup or storage key. Two links differing only in query or fragment
// are the same video.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}

	normalized := url.URL{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   u.Path,
	}
	return normalized.String(), nil
}
