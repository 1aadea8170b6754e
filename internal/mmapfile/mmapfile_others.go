//go:build !unix

package mmapfile

import "os"

func mapFile(fd *os.File, size int) (*File, error) {
	return readFile(fd, size)
}
