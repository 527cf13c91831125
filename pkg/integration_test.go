package pkg

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManouchehrRasoulli/fsguard/pkg/auth"
	"github.com/ManouchehrRasoulli/fsguard/pkg/client"
	"github.com/ManouchehrRasoulli/fsguard/pkg/guard"
	"github.com/ManouchehrRasoulli/fsguard/pkg/protocol"
	"github.com/ManouchehrRasoulli/fsguard/pkg/server"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func checkOpenSSL() error {
	cmd := exec.Command("openssl", "version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("OpenSSL not available %w", err)
	}

	return nil
}

func genTlsFiles(dir string) (key string, crt string, err error) {
	key = filepath.Join(dir, "server.key")
	crt = filepath.Join(dir, "server.crt")

	genKeyCmd := exec.Command("openssl", "genrsa", "-out", key, "2048")
	if out, err := genKeyCmd.CombinedOutput(); err != nil {
		return "", "", fmt.Errorf("failed to generate private key: %w, output: %s", err, out)
	}

	genCrtCmd := exec.Command("openssl", "req", "-new", "-x509", "-key", key,
		"-out", crt, "-days", "1", "-subj", "/CN=localhost")
	if output, err := genCrtCmd.CombinedOutput(); err != nil {
		return "", "", fmt.Errorf("failed to generate certificate: %w, output: %s", err, output)
	}

	return key, crt, nil
}

func genPwFile(dir string) (username string, password string, store *auth.Store, err error) {
	store, err = auth.Open(filepath.Join(dir, "users"), auth.WithCost(bcrypt.MinCost))
	if err != nil {
		return "", "", nil, err
	}

	username = "user"
	password = "user"
	if err = store.Add(username, password); err != nil {
		return "", "", nil, err
	}

	return username, password, store, nil
}

func TestIntegration(t *testing.T) {
	tests := []struct {
		name string
		tls  bool
		pw   bool
	}{
		{name: "plain"},
		{name: "tls", tls: true},
		{name: "password file", pw: true},
		{name: "tls and password file", tls: true, pw: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tls {
				if err := checkOpenSSL(); err != nil {
					t.Skip("Skipping TLS test: ", err)
				}
			}
			lg := log.New(os.Stdout, "integration "+tt.name+" --> ", 1|4)

			dir, err := filepath.EvalSymlinks(t.TempDir())
			require.NoError(t, err)
			secrets := t.TempDir()

			serverOpts := []server.Option{server.WithLogger(lg), server.WithMIME(true)}
			clientOpts := []client.Option{client.WithLogger(lg)}

			if tt.tls {
				key, crt, err := genTlsFiles(secrets)
				require.NoError(t, err, "failed to generate TLS files")
				serverOpts = append(serverOpts, server.WithTLS(&server.ServerTLS{Key: key, Cert: crt}))
				clientOpts = append(clientOpts, client.WithTLS(&tls.Config{InsecureSkipVerify: true}))
			}
			if tt.pw {
				username, password, store, err := genPwFile(secrets)
				require.NoError(t, err, "failed to generate password file")
				serverOpts = append(serverOpts, server.WithAuth(store))
				clientOpts = append(clientOpts, client.WithCredentials(username, password))
			}

			s := server.NewServer("localhost:0", serverOpts...)
			require.NoError(t, s.Listen(), "server listen !")
			serverDone := make(chan error, 1)
			go func() { serverDone <- s.Run() }()

			g := guard.New(guard.WithHandler(s), guard.WithLogger(lg))
			g.AddSuffix(".log")
			require.NoError(t, g.AddPath(dir, true), "watch path !")
			g.Start()

			changes := make(chan protocol.ChangePayload, 64)
			clientOpts = append(clientOpts, client.WithChangeHook(func(p protocol.ChangePayload) {
				select {
				case changes <- p:
				default:
				}
			}))
			c := client.NewClient(s.Addr().String(), clientOpts...)
			clientDone := make(chan error, 1)
			go func() { clientDone <- c.Run() }()

			// changes reach the client once its subscription is registered
			probe := 0
			require.Eventually(t, func() bool {
				probe++
				_ = os.WriteFile(filepath.Join(dir, fmt.Sprintf("probe-%d.log", probe)), nil, 0o644)
				select {
				case <-changes:
					return true
				case <-time.After(50 * time.Millisecond):
					return false
				}
			}, 10*time.Second, time.Millisecond)

			require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("tmp"), 0o644))
			target := filepath.Join(dir, "x.log")
			require.NoError(t, os.WriteFile(target, []byte("hello\n"), 0o644))

			deadline := time.After(5 * time.Second)
		wait:
			for {
				select {
				case p := <-changes:
					require.False(t, strings.HasSuffix(p.Path, ".tmp"), "filtered suffix streamed: %s", p.Path)
					if p.Path == target {
						require.NotEmpty(t, p.MIME, "mime detected for %s", p.Path)
						break wait
					}
				case <-deadline:
					t.Fatal("no change streamed for x.log")
				}
			}

			require.NoError(t, c.Close(), "client exit !!")
			require.NoError(t, <-clientDone)

			g.Close()
			require.NoError(t, s.Close(), "server exit !!")
			require.ErrorIs(t, <-serverDone, server.ErrServerClosed)
		})
	}
}
