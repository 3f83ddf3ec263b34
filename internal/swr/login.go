package swr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLoginCommand is returned when the issued login command cannot be
// turned into a username/password pair.
var ErrInvalidLoginCommand = errors.New("invalid login command")

// Credential is a short-lived registry login.
type Credential struct {
	Username string
	Password string
}

// String hides the password.
func (c Credential) String() string {
	return fmt.Sprintf("%s:****", c.Username)
}

// LoginSecret is the outcome of a secret-issuance call.
type LoginSecret struct {
	StatusCode int
	// Command is the issued "docker login -u ... -p ..." line.
	Command string
	// Auths maps registry hosts to base64 "user:password" tokens.
	Auths map[string]string
}

// OK reports whether the secret was issued with HTTP 200. Only then is it used.
func (s LoginSecret) OK() bool {
	return s.StatusCode == 200
}

// Credential extracts the login for registry, preferring the login command
// and falling back to the auths entry for registry.
func (s LoginSecret) Credential(registry string) (Credential, error) {
	if s.Command != "" {
		return ParseLoginCommand(s.Command)
	}
	if token, ok := s.Auths[registry]; ok {
		return decodeAuth(token)
	}
	return Credential{}, fmt.Errorf("%w: no login command or auths entry for %s", ErrInvalidLoginCommand, registry)
}

// ParseLoginCommand parses "docker login -u USER -p PASSWORD [server]".
// Both the separated and the "--flag=value" forms are accepted.
func ParseLoginCommand(command string) (Credential, error) {
	fields := strings.Fields(command)
	if len(fields) < 2 || fields[0] != "docker" || fields[1] != "login" {
		return Credential{}, fmt.Errorf("%w: expected \"docker login\" prefix", ErrInvalidLoginCommand)
	}

	var cred Credential
	for i := 2; i < len(fields); i++ {
		flag, value, inline := strings.Cut(fields[i], "=")
		var dst *string
		switch flag {
		case "-u", "--username":
			dst = &cred.Username
		case "-p", "--password":
			dst = &cred.Password
		default:
			continue
		}
		if !inline {
			if i+1 >= len(fields) {
				return Credential{}, fmt.Errorf("%w: flag %s has no value", ErrInvalidLoginCommand, flag)
			}
			i++
			value = fields[i]
		}
		*dst = value
	}

	if cred.Username == "" || cred.Password == "" {
		return Credential{}, fmt.Errorf("%w: username or password missing", ErrInvalidLoginCommand)
	}
	return cred, nil
}

func decodeAuth(token string) (Credential, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: decode auth: %v", ErrInvalidLoginCommand, err)
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok || user == "" || pass == "" {
		return Credential{}, fmt.Errorf("%w: auth is not user:password", ErrInvalidLoginCommand)
	}
	return Credential{Username: user, Password: pass}, nil
}
