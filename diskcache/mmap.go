package diskcache

import (
	"os"

	"github.com/dgraph-io/ristretto/v2/z"
)

// readMmap reads an entire file through a transient read-only mapping.
// The mapping is copied and unmapped before return; records carry no
// reference counts here, so handing out mapped memory would be unsafe.
func readMmap(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}

	mapped, err := z.Mmap(f, false, info.Size())
	if err != nil {
		return nil, err
	}
	data := append([]byte(nil), mapped...)
	if err := z.Munmap(mapped); err != nil {
		return nil, err
	}
	return data, nil
}
