package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

const (
	xForwardedForHeader = "X-Forwarded-For"
	unknownAddress      = "unknown"
)

// RequestKey derives the submitter key for an upload request: the client
// address joined with the port the submitting server claims to listen on.
// Two server processes behind one NAT address get independent buckets as
// long as they declare different ports.
func RequestKey(r *http.Request, serverPort int) string {
	return clientAddress(r) + ":" + strconv.Itoa(serverPort)
}

// clientAddress prefers the first X-Forwarded-For entry. The header is only
// meaningful behind a reverse proxy that overwrites it; a direct client can
// spoof it, which is an accepted trust trade-off.
func clientAddress(r *http.Request) string {
	forwardedFor := r.Header.Get(xForwardedForHeader)
	if forwardedFor != "" && !strings.EqualFold(forwardedFor, unknownAddress) {
		// The header can list multiple addresses; the left-most one is
		// the original client.
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
