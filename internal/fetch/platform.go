package fetch

import (
	"net/url"
	"strings"
)

// Platform is a known profile host.
type Platform string

const (
	// PlatformGitHub is a GitHub user profile
	PlatformGitHub Platform = "github"
	// PlatformGitLab is a GitLab user profile
	PlatformGitLab Platform = "gitlab"
	// PlatformLinkedIn is a public LinkedIn profile
	PlatformLinkedIn Platform = "linkedin"
	// PlatformPersonal is any other site, assumed to be a personal page
	PlatformPersonal Platform = "personal"
)

// DetectPlatform identifies the profile host from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformPersonal
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	switch {
	case host == "github.com":
		return PlatformGitHub
	case host == "gitlab.com":
		return PlatformGitLab
	case host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com"):
		return PlatformLinkedIn
	}
	return PlatformPersonal
}

// PlatformContentSelectors returns content selectors for a profile host.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformGitHub:
		return []string{
			".js-profile-editable-area",
			".vcard-details",
			"[itemtype='http://schema.org/Person']",
			"main",
		}
	case PlatformGitLab:
		return []string{
			".user-profile",
			".profile-header",
			"main",
		}
	case PlatformLinkedIn:
		return []string{
			".top-card-layout",
			"main",
			".core-rail",
		}
	default:
		return ProfileSelectors()
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a profile host.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		"form",
		".social-share",
		".share-buttons",
		".cookie-banner",
		".cookie-consent",
		".gdpr-notice",
	}

	switch platform {
	case PlatformGitHub:
		return append(common,
			".js-pinned-items-reorder-container",
			".js-yearly-contributions",
			".UnderlineNav",
		)
	case PlatformLinkedIn:
		return append(common,
			".join-form",
			".authwall-join-form",
			".contextual-sign-in-modal",
		)
	default:
		return common
	}
}
