package ports

// L7ProtocolFromDPort returns a short L7 protocol name for well-known
// destination ports (443 => "https") and "unknown" for everything else.
// Port 0 carries no port information and maps to "na".
func L7ProtocolFromDPort(dport uint16) string {
	switch dport {
	case 0:
		return "na"
	case 20, 21:
		return "ftp"
	case 22:
		return "ssh"
	case 23:
		return "telnet"
	case 25, 465, 587:
		return "smtp"
	case 53:
		return "dns"
	case 67, 68:
		return "dhcp"
	case 80:
		return "http"
	case 110:
		return "pop3"
	case 123:
		return "ntp"
	case 143:
		return "imap"
	case 389:
		return "ldap"
	case 443:
		return "https"
	case 631:
		return "ipp"
	case 993:
		return "imaps"
	case 995:
		return "pop3s"
	case 3306:
		return "mysql"
	case 3389:
		return "rdp"
	case 5432:
		return "postgres"
	case 6379:
		return "redis"
	case 9200:
		return "elasticsearch"
	}

	return "unknown"
}
