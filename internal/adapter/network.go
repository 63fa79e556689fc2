package adapter

import (
	"net"
	"net/url"
	"time"
)

// NetworkChecker answers the pre-flight connectivity question every sync
// entry point asks before doing any work.
type NetworkChecker interface {
	Online() bool
}

type dialChecker struct {
	address string
	timeout time.Duration
}

// NewNetworkChecker returns a [NetworkChecker] that probes the host of
// rawurl with a TCP dial. An unparseable URL yields a checker that always
// reports offline.
func NewNetworkChecker(rawurl string, timeout time.Duration) NetworkChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	u, err := url.Parse(rawurl)
	if err != nil || u.Hostname() == "" {
		return &dialChecker{}
	}

	port := u.Port()
	if port == "" {
		if u.Scheme == "http" {
			port = "80"
		} else {
			port = "443"
		}
	}

	return &dialChecker{
		address: net.JoinHostPort(u.Hostname(), port),
		timeout: timeout,
	}
}

func (c *dialChecker) Online() bool {
	if c.address == "" {
		return false
	}

	conn, err := net.DialTimeout("tcp", c.address, c.timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
