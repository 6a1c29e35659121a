package config

import (
	"net"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps localhost to host.docker.internal when running in a
// container, so Postgres, Redis and MinIO on the host stay reachable.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	return rewriteLoopback(host)
}

// ResolveEndpointForDocker is ResolveHostForDocker for host:port endpoints.
func ResolveEndpointForDocker(endpoint string) string {
	if !IsRunningInDocker() || endpoint == "" {
		return endpoint
	}
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return rewriteLoopback(endpoint)
	}
	return net.JoinHostPort(rewriteLoopback(host), port)
}

func rewriteLoopback(host string) string {
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
