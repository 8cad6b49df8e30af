package scanning

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/netport/internal/errors"
)

const defaultDNSTimeout = 5 * time.Second

// Resolver turns a hostname or IP literal into exactly one address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (net.IP, error)
}

// SystemResolver resolves through the operating system's resolver.
type SystemResolver struct {
	resolver *net.Resolver
}

// NewSystemResolver returns a resolver backed by net.DefaultResolver.
func NewSystemResolver() *SystemResolver {
	return &SystemResolver{resolver: net.DefaultResolver}
}

// Resolve returns the first IPv4 address for host, or the first address of
// any family when no IPv4 record exists. Failures carry the original host.
func (r *SystemResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	addrs, err := r.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, errors.ErrResolutionFailed(host, err)
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ips = append(ips, addr.IP)
	}
	ip := pickAddress(ips)
	if ip == nil {
		return nil, errors.ErrResolutionFailed(host, fmt.Errorf("no addresses returned"))
	}
	return ip, nil
}

func pickAddress(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}

// DNSResolver queries a specific DNS server directly, bypassing the system
// resolver configuration. It asks for A records first and falls back to AAAA.
type DNSResolver struct {
	server string
	client *dns.Client
}

// NewDNSResolver creates a resolver for server ("host:port"; port 53 is
// assumed when omitted).
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	if timeout <= 0 {
		timeout = defaultDNSTimeout
	}
	return &DNSResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// Resolve implements Resolver.
func (r *DNSResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		ip, err := r.query(ctx, host, qtype)
		if err != nil {
			return nil, errors.ErrResolutionFailed(host, err)
		}
		if ip != nil {
			return ip, nil
		}
	}
	return nil, errors.ErrResolutionFailed(host, fmt.Errorf("no A or AAAA records from %s", r.server))
}

func (r *DNSResolver) query(ctx context.Context, host string, qtype uint16) (net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, err
	}
	if in.Rcode == dns.RcodeNameError {
		return nil, fmt.Errorf("%s: %s", dns.RcodeToString[in.Rcode], host)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns server returned %s", dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			return rec.A, nil
		case *dns.AAAA:
			return rec.AAAA, nil
		}
	}
	return nil, nil
}
