package providers

const (
	// Identifier for ip-api.com.
	NameIPAPI = "ipapi"

	// Identifier for freeipapi.com.
	NameFreeIPAPI = "freeipapi"

	// Identifier for ipinfo.io.
	NameIPInfo = "ipinfo"

	// Identifier for ipstack.com
	NameIPStack = "ipstack"

	// Identifier for tools.keycdn.com.
	NameKeyCDN = "keycdn"

	// Identifier for local MaxMind GeoLite2/GeoIP2 City databases.
	NameMaxmind = "maxmind"
)
