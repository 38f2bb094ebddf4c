// Package textutil provides filename and token sanitization shared by the
// naming engine, packaging, and storage key generation.
//
// Unicode input is folded to ASCII (accents stripped via golang.org/x/text)
// before unsafe characters are replaced, so exported names stay portable
// across filesystems, object stores, and FTP servers.
package textutil
