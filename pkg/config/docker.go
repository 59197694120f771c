package config

import (
	"os"
	"sync"
)

var dockerCheck struct {
	once     sync.Once
	inDocker bool
}

// IsRunningInDocker reports whether the engine runs inside a container,
// detected via /.dockerenv. The check is cached.
func IsRunningInDocker() bool {
	dockerCheck.once.Do(func() {
		_, err := os.Stat("/.dockerenv")
		dockerCheck.inDocker = err == nil
	})
	return dockerCheck.inDocker
}

// ResolveHostForDocker rewrites loopback hosts to host.docker.internal so
// a containerized engine can reach a warehouse or model server published
// on the host machine. Non-loopback hosts pass through unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
