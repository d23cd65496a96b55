package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

type Protocol string

const (
	Telnet Protocol = "telnet"
	HTTP   Protocol = "http"
	HTTPS  Protocol = "https"
)

var defaultPorts = map[Protocol]int{
	Telnet: 4242,
	HTTP:   80,
	HTTPS:  443,
}

var (
	ErrMissingURI      = errors.New("kairosdb-uri not defined")
	ErrInvalidURI      = errors.New("kairosdb-uri must be in the format of <protocol>://<host>[:<port>]")
	ErrInvalidProtocol = errors.New(`invalid protocol specified. must be either "http", "https" or "telnet"`)
)

// Target is the KairosDB endpoint points are pushed to.
type Target struct {
	Protocol Protocol
	Host     string
	Port     int
}

// ParseTarget parses <protocol>://host[:port]. The port defaults to 80, 443
// or 4242 depending on the protocol.
func ParseTarget(uri string) (Target, error) {
	if uri == "" {
		return Target{}, ErrMissingURI
	}
	if !strings.Contains(uri, "://") {
		return Target{}, ErrInvalidURI
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	proto := Protocol(strings.ToLower(u.Scheme))
	defaultPort, ok := defaultPorts[proto]
	if !ok {
		return Target{}, ErrInvalidProtocol
	}
	if u.Hostname() == "" {
		return Target{}, ErrInvalidURI
	}
	port := defaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Target{}, ErrInvalidURI
		}
	}
	return Target{Protocol: proto, Host: u.Hostname(), Port: port}, nil
}

// HTTPFamily reports whether points travel as JSON over http or https.
func (t Target) HTTPFamily() bool {
	return t.Protocol == HTTP || t.Protocol == HTTPS
}

func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return fmt.Sprintf("%s://%s", t.Protocol, t.Addr())
}
