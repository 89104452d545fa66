package eventbus

import "strings"

// MatchPattern reports whether a topic binding pattern matches a routing key.
// Patterns follow topic-exchange rules: dot-delimited tokens, "*" matches
// exactly one token, "#" matches zero or more.
func MatchPattern(pattern, routingKey string) bool {
	return matchTokens(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchTokens(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchTokens(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || pattern[0] != key[0] {
				return false
			}
		}
		pattern = pattern[1:]
		key = key[1:]
	}
	return len(key) == 0
}
