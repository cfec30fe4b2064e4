package source

import (
	"fmt"
	"net"
	"net/url"
)

// Camera connection modes.
const (
	ModeLocal  = "local"
	ModeTunnel = "tunnel"
)

// VAPIX paths for the stream kinds that need a camera URL.
const (
	PathMJPEG    = "/axis-cgi/mjpg/video.cgi"
	PathSnapshot = "/axis-cgi/jpg/image.cgi"
)

// BuildCameraURL builds the camera URL for the given mode.
// In local mode the camera is reached directly at host. In tunnel mode it is
// reached through a port forwarded to localhost, and forwardPort is required.
func BuildCameraURL(mode, user, password, host, forwardPort, kind string) (string, error) {
	path := PathMJPEG
	if kind == KindSnapshot {
		path = PathSnapshot
	}

	u := url.URL{Scheme: "http", Path: path}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}

	switch mode {
	case ModeLocal, "":
		if host == "" {
			return "", fmt.Errorf("camera host must be provided for local mode")
		}
		u.Host = host
	case ModeTunnel:
		if forwardPort == "" {
			return "", fmt.Errorf("forward port must be provided for tunnel mode")
		}
		u.Host = net.JoinHostPort("localhost", forwardPort)
	default:
		return "", fmt.Errorf("invalid mode %q: choose %q or %q", mode, ModeLocal, ModeTunnel)
	}
	return u.String(), nil
}

// Redact returns rawURL with any password replaced, for logging.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Redacted()
}
