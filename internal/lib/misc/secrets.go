/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */

package misc

import (
	"os"
	"slices"
	"strings"
)

var secretsMap = map[string]string{}

// SetSecret registers a secret that isn't in the environment (env still wins on lookup).
func SetSecret(key, value string) {
	secretsMap[key] = value
}

// SecretKeys returns the sorted, de-duplicated names of every env var and registered secret
// starting with prefix.
func SecretKeys(prefix string) []string {
	var uniqKeys = map[string]bool{}
	for _, envVal := range os.Environ() {
		key, _, _ := strings.Cut(envVal, "=")
		if strings.HasPrefix(key, prefix) {
			uniqKeys[key] = true
		}
	}
	for k := range secretsMap {
		if strings.HasPrefix(k, prefix) {
			uniqKeys[k] = true
		}
	}
	var retStrings []string
	for k := range uniqKeys {
		retStrings = append(retStrings, k)
	}
	slices.Sort(retStrings)
	return retStrings
}

func GetSecret(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return secretsMap[key]
}
