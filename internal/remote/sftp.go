package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const defaultDialTimeout = 15 * time.Second

// Auth holds the credential material for one dial attempt. AuthFunc is
// invoked on every (re)connect so rotated credentials are picked up on the
// next cycle instead of being cached for the lifetime of the client.
type Auth struct {
	Username   string
	Password   string
	PrivateKey []byte
	Passphrase []byte
}

// AuthFunc supplies credentials at dial time.
type AuthFunc func(ctx context.Context) (Auth, error)

// SFTPConfig configures an SFTP-backed Filesystem.
type SFTPConfig struct {
	Host        string
	Port        int
	AuthFunc    AuthFunc
	DialTimeout time.Duration

	// HostKeyCallback defaults to ssh.InsecureIgnoreHostKey when nil.
	// Callers that care about MITM should supply a pinned key callback.
	HostKeyCallback ssh.HostKeyCallback
}

func (c *SFTPConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", port))
}

// SFTPClient is a lazily connecting Filesystem over SFTP. The first List
// dials; a lost connection is dropped and redialed on the next call with
// freshly fetched credentials.
type SFTPClient struct {
	cfg SFTPConfig

	mu   sync.Mutex
	conn *ssh.Client
	sftp *sftp.Client
}

var _ Filesystem = (*SFTPClient)(nil)

func NewSFTPClient(cfg SFTPConfig) *SFTPClient {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &SFTPClient{cfg: cfg}
}

// List returns the entries of the remote directory at path.
func (c *SFTPClient) List(ctx context.Context, path string) ([]RawEntry, error) {
	client, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	infos, err := client.ReadDirContext(ctx, path)
	if err != nil {
		c.dropIfDisconnected(err)
		return nil, Classify("list", path, err)
	}

	entries := make([]RawEntry, 0, len(infos))
	for _, fi := range infos {
		entry := RawEntry{
			Name:      fi.Name(),
			Size:      fi.Size(),
			IsDir:     fi.IsDir(),
			IsSymlink: fi.Mode()&os.ModeSymlink != 0,
			ModTime:   fi.ModTime(),
		}
		// SFTP v3 reports atime alongside mtime; there is no ctime.
		if stat, ok := fi.Sys().(*sftp.FileStat); ok && stat.Atime > 0 {
			entry.AccessTime = time.Unix(int64(stat.Atime), 0)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close tears down the SFTP session and the SSH connection.
func (c *SFTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *SFTPClient) closeLocked() error {
	var err error
	if c.sftp != nil {
		err = c.sftp.Close()
		c.sftp = nil
	}
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
		c.conn = nil
	}
	return err
}

func (c *SFTPClient) ensureConnected(ctx context.Context) (*sftp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sftp != nil {
		return c.sftp, nil
	}

	auth, err := c.cfg.AuthFunc(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch credentials for %s: %w", c.cfg.addr(), err)
	}

	methods, err := authMethods(auth)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := c.cfg.HostKeyCallback
	if hostKeyCallback == nil {
		slog.Warn("sftp host key verification disabled", "host", c.cfg.Host)
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	sshCfg := &ssh.ClientConfig{
		User:            auth.Username,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.cfg.DialTimeout,
	}

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", c.cfg.addr())
	if err != nil {
		return nil, Classify("dial", c.cfg.addr(), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, c.cfg.addr(), sshCfg)
	if err != nil {
		netConn.Close()
		return nil, Classify("handshake", c.cfg.addr(), err)
	}
	conn := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, Classify("sftp subsystem", c.cfg.addr(), err)
	}

	slog.Debug("sftp connected", "host", c.cfg.Host, "user", auth.Username)
	c.conn = conn
	c.sftp = sftpClient
	return c.sftp, nil
}

// dropIfDisconnected closes the cached session when the error indicates the
// connection is gone, so the next call redials.
func (c *SFTPClient) dropIfDisconnected(err error) {
	if classifyKind(err) != KindUnreachable {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cerr := c.closeLocked(); cerr != nil {
		slog.Debug("sftp close after disconnect", "error", cerr)
	}
}

func authMethods(auth Auth) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if len(auth.PrivateKey) > 0 {
		var signer ssh.Signer
		var err error
		if len(auth.Passphrase) > 0 {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(auth.PrivateKey, auth.Passphrase)
		} else {
			signer, err = ssh.ParsePrivateKey(auth.PrivateKey)
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if auth.Password != "" {
		methods = append(methods, ssh.Password(auth.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no credentials available: %w", ErrAuthFailed)
	}
	return methods, nil
}
