//go:build unix

package mmapfile

import (
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(fd *os.File, size int) (*File, error) {
	data, err := unix.Mmap(int(fd.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// some filesystems cannot be mapped
		slog.Debug("mmapFallback", "name", fd.Name(), "err", err)
		return readFile(fd, size)
	}
	return &File{data: data, unmap: unix.Munmap}, nil
}
