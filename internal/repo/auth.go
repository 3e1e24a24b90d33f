package repo

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/bashhack/simpletext/internal/config"
)

// DefaultSSHUser is used when the remote URL carries no user.
const DefaultSSHUser = "git"

// Auth builds the credential for cfg's remote: a public key for ssh remotes
// and nothing for local paths.
func Auth(cfg config.Config) (transport.AuthMethod, error) {
	ep, err := cfg.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}

	switch ep.Protocol {
	case "file":
		return nil, nil
	case "ssh":
	default:
		return nil, fmt.Errorf("unsupported remote protocol %q", ep.Protocol)
	}

	user := ep.User
	if user == "" {
		user = DefaultSSHUser
	}

	keys, err := ssh.NewPublicKeysFromFile(user, cfg.SSHKeyPath, "")
	if err != nil {
		return nil, fmt.Errorf("load ssh key %s: %w", cfg.SSHKeyPath, err)
	}

	if cfg.KnownHosts != "" {
		callback, err := ssh.NewKnownHostsCallback(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts %s: %w", cfg.KnownHosts, err)
		}
		keys.HostKeyCallback = callback
	}

	return keys, nil
}
