package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptStateKey returns the storage key for a user's in-progress attempt on an activity.
// namespace is derived from the user identity so that accounts sharing a device never collide.
func (r *CacheKeyStruct) AttemptStateKey(namespace string, activityID int64) string {
	return fmt.Sprintf("attempt:%s:activity:%d:state", namespace, activityID)
}

var CacheKey = NewCacheKeyStruct()
