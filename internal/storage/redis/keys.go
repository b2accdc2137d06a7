package redis

import "fmt"

// Key prefix for all identity data
const keyPrefix = "quizmatch"

// playerKey returns the Redis key for a Player record
func playerKey(username string) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, username)
}

// sessionIndexKey returns the Redis key for the token hash -> username index
func sessionIndexKey(tokenHash string) string {
	return fmt.Sprintf("%s:idx:session:%s", keyPrefix, tokenHash)
}
