package target

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTarget indicates the build target name is not server or client
	ErrUnknownTarget = errors.New("unknown build target")
	// ErrUnknownEnv indicates the environment is not development or production
	ErrUnknownEnv = errors.New("unknown build environment")
)

// Name selects the server or client variant of the output bundle.
type Name string

const (
	Server Name = "server"
	Client Name = "client"
)

// Env selects development or production behaviour.
type Env string

const (
	Development Env = "development"
	Production  Env = "production"
)

// Target pairs a build target with its environment. It is immutable for the
// duration of one composition.
type Target struct {
	Name Name
	Env  Env
}

func New(name Name, env Env) Target {
	return Target{Name: name, Env: env}
}

func (t Target) IsServer() bool { return t.Name == Server }

func (t Target) IsClient() bool { return t.Name == Client }

func (t Target) Dev() bool { return t.Env == Development }

// Bundler platform names.
const (
	NodePlatform = "node"
	WebPlatform  = "web"
)

// Platform returns the bundler platform name for the target.
func (t Target) Platform() string {
	if t.IsServer() {
		return NodePlatform
	}
	return WebPlatform
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.Name, t.Env)
}

// ParseName accepts server/client as well as the bundler aliases node/web.
func ParseName(s string) (Name, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "server", "node":
		return Server, nil
	case "client", "web":
		return Client, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
}

func ParseEnv(s string) (Env, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return Development, nil
	case "production", "prod":
		return Production, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnv, s)
	}
}
