// Package catalog holds the fixed well-known port table and the security
// recommendation attached to each recognised service. Both tables are
// immutable after package initialisation and safe for concurrent use.
package catalog

// Unknown is the service name reported for ports outside the table.
const Unknown = "Unknown"

// GenericRecommendation is returned for services without a specific note.
const GenericRecommendation = "ℹ️  Review whether this port needs to be publicly accessible."

var services = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	110:   "POP3",
	111:   "RPC",
	135:   "MSRPC",
	139:   "NetBIOS",
	143:   "IMAP",
	443:   "HTTPS",
	445:   "SMB",
	465:   "SMTPS",
	587:   "SMTP-TLS",
	993:   "IMAPS",
	995:   "POP3S",
	1433:  "MSSQL",
	1521:  "Oracle DB",
	1723:  "PPTP VPN",
	2049:  "NFS",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	6379:  "Redis",
	6443:  "Kubernetes API",
	8080:  "HTTP-Alt",
	8443:  "HTTPS-Alt",
	8888:  "HTTP-Alt2",
	9200:  "Elasticsearch",
	27017: "MongoDB",
}

// Notes open with a severity marker: ✅ fine, ⚠️ caution, 🚨 critical.
const databaseExposed = "⚠️  Database port exposed. Restrict to localhost or trusted IPs only."

var recommendations = map[string]string{
	"FTP":           "⚠️  FTP transmits credentials in plain text. Replace with SFTP or FTPS.",
	"Telnet":        "🚨 Telnet is insecure. Migrate to SSH immediately.",
	"SSH":           "✅ SSH is generally secure. Ensure key-based auth is enforced.",
	"HTTP":          "⚠️  Unencrypted HTTP. Consider enforcing HTTPS with a redirect.",
	"HTTPS":         "✅ HTTPS enabled. Verify TLS certificate validity.",
	"RDP":           "🚨 RDP exposed publicly is a critical risk. Restrict with a VPN or firewall.",
	"SMB":           "🚨 SMB exposed publicly is dangerous (EternalBlue). Block port 445 at firewall.",
	"MySQL":         databaseExposed,
	"PostgreSQL":    databaseExposed,
	"MongoDB":       "🚨 MongoDB with no auth has caused major breaches. Restrict access immediately.",
	"Redis":         "🚨 Redis often has no auth by default. Bind to localhost and add a password.",
	"VNC":           "⚠️  VNC can be brute-forced. Use strong passwords and restrict access via VPN.",
	"NetBIOS":       "⚠️  NetBIOS can leak system info. Disable if not needed on public interfaces.",
	"DNS":           "✅ DNS port open. Ensure it's not an open resolver to prevent amplification attacks.",
	"Elasticsearch": "🚨 Elasticsearch has no auth by default. Restrict immediately.",
}

// ServiceName returns the well-known service for port, or Unknown.
func ServiceName(port int) string {
	if name, ok := services[port]; ok {
		return name
	}
	return Unknown
}

// Recommendation returns the security note for service. Lookup is exact and
// case-sensitive; anything not in the table gets GenericRecommendation.
func Recommendation(service string) string {
	if tip, ok := recommendations[service]; ok {
		return tip
	}
	return GenericRecommendation
}

// Ports returns the number of entries in the port table.
func Ports() int {
	return len(services)
}
