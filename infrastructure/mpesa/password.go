package mpesa

import (
	"encoding/base64"
	"time"
)

const timestampLayout = "20060102150405"

// The gateway reads and writes timestamps in East Africa Time
var eastAfrica = time.FixedZone("EAT", 3*60*60)

// Timestamp formats t the way the gateway expects in request passwords
func Timestamp(t time.Time) string {
	return t.In(eastAfrica).Format(timestampLayout)
}

// ParseTimestamp reads a gateway timestamp such as a callback's TransactionDate
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timestampLayout, s, eastAfrica)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Password is base64(shortcode + passkey + timestamp)
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

func basicCredentials(key, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(key + ":" + secret))
}
