package validation

import (
	"regexp"
	"strings"
)

const MaxSubscriptionTypeLength = 32

// Subscription types are short slugs such as "weekly" or "crow-of-the-day".
// They are echoed into outgoing mail, so nothing else is accepted.
var subscriptionTypePattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

func NormalizeSubscriptionType(subType string) string {
	return strings.ToLower(strings.TrimSpace(subType))
}

func IsValidSubscriptionType(subType string) bool {
	return subscriptionTypePattern.MatchString(subType)
}
