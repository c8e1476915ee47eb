// Command recipe-proxy serves and prefetches recipe data through the TTL
// cache.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
