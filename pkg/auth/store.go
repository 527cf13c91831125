package auth

/*
	auth --> password file and stream sessions.

	The password file holds one "username:bcrypt-hash" record per line. A user
	may hold at most one active stream session at a time; a second login from
	anywhere is refused until the first session logs out.
*/

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidUsername = errors.New("username is invalid. it can contain letters, numbers and underscores but should start with a letter")
	ErrUsernameExists  = errors.New("username exists")
	ErrUnknownUser     = errors.New("unknown user")
	ErrEmptyPassword   = errors.New("password is empty")
	ErrPwFileFormat    = errors.New("something is wrong with the password file content format")
	ErrBadCredentials  = errors.New("invalid username or password")
	ErrSessionActive   = errors.New("another session of this user is active")
)

const (
	columnSep  = ":"
	pwFileMode = 0o600

	// DefaultCost is the bcrypt cost used for new passwords.
	DefaultCost = 12
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z]\w*$`)

type Option func(s *Store)

// WithCost sets the bcrypt cost of new passwords.
func WithCost(cost int) Option {
	return func(s *Store) {
		s.cost = cost
	}
}

type Store struct {
	file string
	cost int

	mu       sync.RWMutex
	users    map[string]string // username -> hash
	sessions map[string]string // username -> remote host
}

// Open loads file, creating it empty when it does not exist.
func Open(file string, options ...Option) (*Store, error) {
	s := &Store{
		file:     file,
		cost:     DefaultCost,
		users:    make(map[string]string),
		sessions: make(map[string]string),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.OpenFile(s.file, os.O_CREATE|os.O_RDONLY, pwFileMode)
	if err != nil {
		return err
	}
	defer f.Close()

	users := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, columnSep)
		if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
			return errors.Join(ErrPwFileFormat, fmt.Errorf("line %d has %d fields", line, len(fields)))
		}
		users[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

// Users returns the known usernames, sorted.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Add hashes password and appends the user to the password file.
func (s *Store) Add(username, password string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	if password == "" {
		return ErrEmptyPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, pwFileMode)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.WriteString(username + columnSep + string(hash) + "\n"); err != nil {
		return err
	}
	s.users[username] = string(hash)
	return nil
}

// Delete removes username and rewrites the password file.
func (s *Store) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUser, username)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.file), "pwfile_*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	names := make([]string, 0, len(s.users))
	for name := range s.users {
		if name != username {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	w := bufio.NewWriter(tmp)
	for _, name := range names {
		if _, err = w.WriteString(name + columnSep + s.users[name] + "\n"); err != nil {
			return err
		}
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), s.file); err != nil {
		return err
	}
	if err = os.Chmod(s.file, pwFileMode); err != nil {
		return err
	}

	delete(s.users, username)
	delete(s.sessions, username)
	return nil
}

// Verify reports whether password matches the stored hash of username.
func (s *Store) Verify(username, password string) bool {
	s.mu.RLock()
	hash, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login verifies the credentials and opens a session for host.
func (s *Store) Login(username, password, host string) error {
	if !s.Verify(username, password) {
		return ErrBadCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if active, ok := s.sessions[username]; ok {
		return fmt.Errorf("%w (from %s)", ErrSessionActive, active)
	}
	s.sessions[username] = host
	return nil
}

// Logout closes the session of username, if any.
func (s *Store) Logout(username string) {
	s.mu.Lock()
	delete(s.sessions, username)
	s.mu.Unlock()
}

// Session returns the host of the active session of username.
func (s *Store) Session(username string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	host, ok := s.sessions[username]
	return host, ok
}
