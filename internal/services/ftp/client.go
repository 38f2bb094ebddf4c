// Package ftp uploads delivery artifacts to an FTP server.
package ftp

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/services"
)

// File is a local file and the name it should have on the server.
type File struct {
	Name string
	Path string
}

// Target is the resolved server and directory for one job.
type Target struct {
	Addr      string
	Username  string
	Password  string
	Directory string
	Timeout   time.Duration
}

// ResolveTarget merges destination overrides (host, port, username,
// password, path) over configured defaults.
func ResolveTarget(cfg config.FTP, dest export.Destination) (Target, error) {
	host := cfg.Host
	if v := dest.Value("host"); v != "" {
		host = v
	}
	if strings.TrimSpace(host) == "" {
		return Target{}, services.Wrap(services.ErrConfiguration, "ftp", "resolve", "no ftp host configured", nil)
	}
	port := cfg.Port
	if v := dest.Value("port"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return Target{}, services.Wrap(services.ErrValidation, "ftp", "resolve", fmt.Sprintf("invalid port %q", v), nil)
		}
		port = parsed
	}
	if port <= 0 {
		port = 21
	}
	target := Target{
		Addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Directory: cfg.Directory,
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	if v := dest.Value("username"); v != "" {
		target.Username = v
	}
	if v := dest.Value("password"); v != "" {
		target.Password = v
	}
	if v := dest.Value("path"); v != "" {
		target.Directory = v
	}
	if target.Directory == "" {
		target.Directory = "/"
	}
	if target.Username == "" {
		target.Username = "anonymous"
		target.Password = "anonymous"
	}
	if target.Timeout <= 0 {
		target.Timeout = 30 * time.Second
	}
	return target, nil
}

// RemotePath returns the server path for a file under the target directory.
func (t Target) RemotePath(subdir, name string) string {
	return path.Join("/", t.Directory, subdir, name)
}

// Upload stores files under <directory>/<subdir>, creating directories as
// needed, and returns the ftp:// URL of each uploaded file.
func Upload(ctx context.Context, target Target, subdir string, files []File) ([]string, error) {
	conn, err := ftp.Dial(target.Addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(target.Timeout))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ftp", "dial", target.Addr, err)
	}
	defer conn.Quit()

	if err := conn.Login(target.Username, target.Password); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ftp", "login", target.Username, err)
	}

	remoteDir := path.Join("/", target.Directory, subdir)
	ensureDir(conn, remoteDir)

	urls := make([]string, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return urls, err
		}
		remote := path.Join(remoteDir, file.Name)
		if dir := path.Dir(remote); dir != remoteDir {
			ensureDir(conn, dir)
		}
		if err := stor(conn, remote, file.Path); err != nil {
			return urls, services.Wrap(services.ErrTransient, "ftp", "stor", remote, err)
		}
		urls = append(urls, fmt.Sprintf("ftp://%s%s", target.Addr, remote))
	}
	return urls, nil
}

func stor(conn *ftp.ServerConn, remote, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	return conn.Stor(remote, f)
}

// ensureDir creates each missing path component. MakeDir fails for
// directories that already exist, so errors are ignored and surface on Stor.
func ensureDir(conn *ftp.ServerConn, dir string) {
	current := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		_ = conn.MakeDir(current)
	}
}
