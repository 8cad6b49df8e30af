package scanning

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anstrom/netport/internal/catalog"
)

const (
	// BannerTimeout bounds the banner exchange on an open port.
	BannerTimeout = 500 * time.Millisecond

	bannerReadSize  = 1024
	bannerMaxLength = 200
)

var bannerRequest = []byte("HEAD / HTTP/1.0\r\n\r\n")

// Prober tests a single port on an already-resolved address.
type Prober interface {
	Probe(ctx context.Context, ip net.IP, port int, timeout time.Duration) PortResult
}

// TCPProber probes with a full TCP connect and a short banner exchange.
type TCPProber struct {
	dialer net.Dialer
}

// NewTCPProber returns a ready-to-use TCP prober.
func NewTCPProber() *TCPProber {
	return &TCPProber{}
}

// Probe never returns an error: any connect failure, refusal or timeout
// reports the port closed, and banner problems leave the banner empty. The
// connection is always closed before Probe returns. port must be in
// [1, 65535]; anything else is a programming error and panics.
func (p *TCPProber) Probe(ctx context.Context, ip net.IP, port int, timeout time.Duration) PortResult {
	if port < MinPort || port > MaxPort {
		panic(fmt.Sprintf("scanning: probe of invalid port %d", port))
	}

	result := PortResult{
		Port:    port,
		State:   StateClosed,
		Service: catalog.ServiceName(port),
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
	if err != nil {
		return result
	}
	defer conn.Close()

	result.State = StateOpen
	result.Banner = grabBanner(conn)
	return result
}

func grabBanner(conn net.Conn) string {
	if err := conn.SetDeadline(time.Now().Add(BannerTimeout)); err != nil {
		return ""
	}
	if _, err := conn.Write(bannerRequest); err != nil {
		return ""
	}

	buf := make([]byte, bannerReadSize)
	n, _ := conn.Read(buf)
	if n == 0 {
		return ""
	}
	return cleanBanner(buf[:n])
}

// cleanBanner drops undecodable bytes, trims whitespace and limits the
// result to bannerMaxLength characters.
func cleanBanner(raw []byte) string {
	text := strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
	if utf8.RuneCountInString(text) > bannerMaxLength {
		text = strings.TrimSpace(string([]rune(text)[:bannerMaxLength]))
	}
	return text
}
